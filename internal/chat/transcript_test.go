package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amnofal/amar-ai/internal/config"
)

func TestTranscriptLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewTranscriptLogger(config.TranscriptLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TranscriptEvent{
		UserID:    "anon_1",
		SessionID: "sess-1",
		Role:      "user",
		Text:      "ارسم قطة",
	})

	path := filepath.Join(dir, "anon_1", "sess-1.ndjson")
	line := waitForLogLine(t, path)

	var got TranscriptEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Text != "ارسم قطة" {
		t.Fatalf("unexpected Text: %q", got.Text)
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be populated")
	}
}

func TestTranscriptLoggerDisabledIsInert(t *testing.T) {
	t.Parallel()

	logger, err := NewTranscriptLogger(config.TranscriptLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	logger.Log(TranscriptEvent{UserID: "anon_1", SessionID: "s", Text: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestTranscriptLoggerNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var logger *TranscriptLogger
	logger.Log(TranscriptEvent{Text: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on nil logger failed: %v", err)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
