// Package domain contains core domain types for the Amar AI application.
package domain

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the person chatting.
	RoleUser Role = "user"
	// RoleModel marks a message produced by the assistant.
	RoleModel Role = "model"
)

// Message is a single turn in a chat session. Messages are immutable once
// created and are only ever removed together with their session.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"` // base64 data URI
	Timestamp int64  `json:"timestamp"`       // epoch millis
	IsError   bool   `json:"isError,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// unit used by Message.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
