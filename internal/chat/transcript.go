package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amnofal/amar-ai/internal/config"
)

// TranscriptEvent is one logged direction of a conversation turn.
type TranscriptEvent struct {
	Timestamp string `json:"ts"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	HasImage  bool   `json:"has_image,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TranscriptLogger writes conversation transcripts as NDJSON, one file per
// user and session. Writes go through a bounded queue drained by a single
// goroutine; when the queue is full, events are dropped rather than blocking
// the request path.
type TranscriptLogger struct {
	enabled bool
	dir     string
	queue   chan TranscriptEvent
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewTranscriptLogger creates the logger. When disabled in config, the
// returned logger accepts and discards events.
func NewTranscriptLogger(cfg config.TranscriptLogConfig, logger *slog.Logger) (*TranscriptLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := &TranscriptLogger{
		enabled: cfg.Enabled,
		dir:     cfg.Dir,
		logger:  logger,
	}
	if !cfg.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	l.queue = make(chan TranscriptEvent, queueSize)

	l.wg.Add(1)
	go l.drain()

	return l, nil
}

// Log enqueues an event. Safe on a nil or disabled logger, and never blocks.
func (l *TranscriptLogger) Log(event TranscriptEvent) {
	if l == nil || !l.enabled {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	select {
	case l.queue <- event:
	default:
		l.logger.Warn("transcript queue full, dropping event",
			"user_id", event.UserID, "session_id", event.SessionID)
	}
}

// Close stops the drain goroutine after flushing queued events.
func (l *TranscriptLogger) Close() error {
	if l == nil || !l.enabled {
		return nil
	}
	l.closeOnce.Do(func() {
		close(l.queue)
		l.wg.Wait()
	})
	return nil
}

func (l *TranscriptLogger) drain() {
	defer l.wg.Done()
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write transcript event",
				"user_id", event.UserID, "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *TranscriptLogger) write(event TranscriptEvent) error {
	dir := filepath.Join(l.dir, event.UserID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create user transcript directory: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}

	path := filepath.Join(dir, event.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.Debug("failed to close transcript file", "path", path, "error", closeErr)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	return nil
}
