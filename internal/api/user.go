package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/amnofal/amar-ai/internal/identity"
)

// GetMe returns the calling device's state.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	state, err := h.loadState(r, userID)
	if err != nil {
		slog.Error("Failed to load user state", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user state")
		return
	}
	JSON(w, http.StatusOK, state)
}

// loginRequest is the body of POST /api/me/login.
type loginRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Login marks the device as logged in. Either email or phone is enough; the
// free message counter is left where it is.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutateState(w, r, userID, func(state *domain.UserState) error {
		return state.Login(req.Email, req.Phone)
	})
}

// ToggleTheme flips the device between dark and light.
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.mutateState(w, r, userID, func(state *domain.UserState) error {
		state.ToggleTheme()
		return nil
	})
}

// CycleImageSize advances the generation resolution 1K -> 2K -> 4K -> 1K.
func (h *Handler) CycleImageSize(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.mutateState(w, r, userID, func(state *domain.UserState) error {
		state.ImageSize = state.ImageSize.Next()
		return nil
	})
}

// mutateState loads the device state, applies fn and persists the result.
// A domain validation error maps to 400; everything else to 500.
func (h *Handler) mutateState(w http.ResponseWriter, r *http.Request, userID string, fn func(*domain.UserState) error) {
	state, err := h.loadState(r, userID)
	if err != nil {
		slog.Error("Failed to load user state", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user state")
		return
	}

	if err := fn(state); err != nil {
		if errors.Is(err, domain.ErrLoginContact) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to update user state", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update user state")
		return
	}

	if err := h.repo.UpsertUserState(r.Context(), state); err != nil {
		slog.Error("Failed to persist user state", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to persist user state")
		return
	}
	JSON(w, http.StatusOK, state)
}

// loadState reads the state row, creating it when the device is new. The
// identity middleware normally creates it first, but the API does not depend
// on that ordering.
func (h *Handler) loadState(r *http.Request, userID string) (*domain.UserState, error) {
	state, err := h.repo.GetUserState(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = domain.NewUserState(userID)
		if err := h.repo.UpsertUserState(r.Context(), state); err != nil {
			return nil, err
		}
	}
	return state, nil
}
