package domain

import (
	"errors"
	"time"
)

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ErrLoginContact is returned when a login attempt carries neither an email
// address nor a phone number.
var ErrLoginContact = errors.New("login requires an email or a phone number")

// UserState is the per-device state: login flag, contact info, the free
// message counter and UI preferences. It is persisted as a whole on every
// mutation.
type UserState struct {
	UserID       string    `json:"user_id"`
	IsLoggedIn   bool      `json:"isLoggedIn"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	MessageCount int       `json:"messageCount"`
	Theme        Theme     `json:"theme"`
	ImageSize    ImageSize `json:"imageSize"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// NewUserState returns the initial state for a device that has never been
// seen before.
func NewUserState(userID string) *UserState {
	now := time.Now()
	return &UserState{
		UserID:    userID,
		Theme:     ThemeDark,
		ImageSize: ImageSize1K,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanSend reports whether another free message is allowed. Logged-in users
// are never gated.
func (u *UserState) CanSend(freeLimit int) bool {
	return u.IsLoggedIn || u.MessageCount < freeLimit
}

// Login marks the user as logged in. At least one of email or phone must be
// non-empty. The message counter is deliberately left untouched: logging in
// changes the gating decision, not the count.
func (u *UserState) Login(email, phone string) error {
	if email == "" && phone == "" {
		return ErrLoginContact
	}
	u.IsLoggedIn = true
	u.Email = email
	u.Phone = phone
	return nil
}

// ToggleTheme flips between dark and light.
func (u *UserState) ToggleTheme() {
	if u.Theme == ThemeDark {
		u.Theme = ThemeLight
	} else {
		u.Theme = ThemeDark
	}
}
