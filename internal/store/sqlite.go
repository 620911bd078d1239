package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/amnofal/amar-ai/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS user_states (
		user_id TEXT PRIMARY KEY,
		is_logged_in INTEGER NOT NULL DEFAULT 0,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		message_count INTEGER NOT NULL DEFAULT 0,
		theme TEXT NOT NULL DEFAULT 'dark',
		image_size TEXT NOT NULL DEFAULT '1K',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		preview TEXT NOT NULL,
		date TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_created ON chat_sessions(user_id, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserState retrieves the state row for a device.
func (s *SQLiteStore) GetUserState(ctx context.Context, userID string) (*domain.UserState, error) {
	query := `
		SELECT user_id, is_logged_in, email, phone, message_count,
		       theme, image_size, created_at, updated_at
		FROM user_states WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var state domain.UserState
	var isLoggedIn int
	var theme, imageSize string
	var createdAt, updatedAt int64

	err := row.Scan(
		&state.UserID, &isLoggedIn, &state.Email, &state.Phone,
		&state.MessageCount, &theme, &imageSize, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user state row: %w", err)
	}

	state.IsLoggedIn = isLoggedIn != 0
	state.Theme = domain.Theme(theme)
	state.ImageSize = domain.ImageSize(imageSize)
	state.CreatedAt = time.Unix(createdAt, 0)
	state.UpdatedAt = time.Unix(updatedAt, 0)

	return &state, nil
}

// UpsertUserState creates or replaces the state row for a device.
func (s *SQLiteStore) UpsertUserState(ctx context.Context, state *domain.UserState) error {
	query := `
	INSERT INTO user_states (user_id, is_logged_in, email, phone, message_count, theme, image_size, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		is_logged_in = excluded.is_logged_in,
		email = excluded.email,
		phone = excluded.phone,
		message_count = excluded.message_count,
		theme = excluded.theme,
		image_size = excluded.image_size,
		updated_at = excluded.updated_at`

	isLoggedIn := 0
	if state.IsLoggedIn {
		isLoggedIn = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		state.UserID, isLoggedIn, state.Email, state.Phone,
		state.MessageCount, string(state.Theme), string(state.ImageSize),
		state.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user state: %w", err)
	}
	return nil
}

// ListSessions returns the device's sessions, newest-created first. This
// matches insert-at-front list semantics: updating an existing session never
// moves it.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	query := `
		SELECT id, title, preview, date, messages_json
		FROM chat_sessions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(rows *sql.Rows) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var messagesJSON string

	if err := rows.Scan(&session.ID, &session.Title, &session.Preview, &session.Date, &messagesJSON); err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal session messages: %w", err)
	}
	return &session, nil
}

// GetSession retrieves a single session for a device.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	query := `
		SELECT id, title, preview, date, messages_json
		FROM chat_sessions WHERE user_id = ? AND id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)

	var session domain.ChatSession
	var messagesJSON string

	err := row.Scan(&session.ID, &session.Title, &session.Preview, &session.Date, &messagesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal session messages: %w", err)
	}

	return &session, nil
}

// SaveSession upserts a session. The message list is replaced wholesale and
// the preview recomputed; inserts keep their original title and date on later
// saves. A session with no messages is never persisted.
func (s *SQLiteStore) SaveSession(ctx context.Context, userID string, session *domain.ChatSession) error {
	if len(session.Messages) == 0 {
		return nil
	}

	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("marshal session messages: %w", err)
	}

	session.Preview = domain.PreviewText(session.Messages)
	if session.Title == "" {
		session.Title = domain.DefaultSessionTitle
	}

	now := time.Now()
	query := `
	INSERT INTO chat_sessions (user_id, id, title, preview, date, messages_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, id) DO UPDATE SET
		preview = excluded.preview,
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		userID, session.ID, session.Title, session.Preview, session.Date,
		string(messagesJSON), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Retries with exponential backoff on
// SQLite concurrency errors.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteSessionOnce(ctx, userID, sessionID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("DeleteSession hit a locked database, retrying",
				"user_id", userID,
				"session_id", sessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("delete session %s after %d attempts: %w", sessionID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) deleteSessionOnce(ctx context.Context, userID, sessionID string) error {
	query := `DELETE FROM chat_sessions WHERE user_id = ? AND id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
