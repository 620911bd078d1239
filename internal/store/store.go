// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/amnofal/amar-ai/internal/domain"
)

// Repository defines the interface for persisting user state and chat
// sessions. Each device owns one UserState row and an ordered list of
// sessions; both are written as whole objects on every change.
type Repository interface {
	// GetUserState retrieves the state for a device. Returns (nil, nil)
	// when the device has never been seen.
	GetUserState(ctx context.Context, userID string) (*domain.UserState, error)

	// UpsertUserState creates or replaces the state row for a device.
	UpsertUserState(ctx context.Context, state *domain.UserState) error

	// ListSessions returns the device's sessions, newest-created first.
	ListSessions(ctx context.Context, userID string) ([]*domain.ChatSession, error)

	// GetSession retrieves a single session. Returns (nil, nil) when absent.
	GetSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error)

	// SaveSession inserts the session at the front of the list or, when a
	// session with the same id exists, replaces its messages wholesale and
	// recomputes the preview. Sessions with no messages are never
	// persisted; saving one is a no-op.
	SaveSession(ctx context.Context, userID string, session *domain.ChatSession) error

	// DeleteSession removes a session. Deleting an unknown id is a no-op.
	DeleteSession(ctx context.Context, userID, sessionID string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
