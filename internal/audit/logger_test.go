package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := NewLogger(config.AuditConfig{Enabled: true, Dir: t.TempDir(), MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func readEntries(t *testing.T, logger *Logger) []Entry {
	t.Helper()
	content, err := os.ReadFile(logger.GetFilePath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to unmarshal log entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audit")

	logger, err := NewLogger(config.AuditConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	expectedPath := filepath.Join(dir, FileName)
	if logger.GetFilePath() != expectedPath {
		t.Errorf("Expected file path %s, got %s", expectedPath, logger.GetFilePath())
	}

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Audit directory was not created: %v", err)
	}
}

func TestLogActionSuccess(t *testing.T) {
	logger := newTestLogger(t)

	ctx := logging.ContextWithRequestID(context.Background(), "req-123")
	logger.LogAction(ctx, "ingest", 3, "", 42*time.Millisecond)

	entries := readEntries(t, logger)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Action != "ingest" {
		t.Errorf("Expected action 'ingest', got '%s'", entry.Action)
	}
	if entry.Count != 3 {
		t.Errorf("Expected count 3, got %d", entry.Count)
	}
	if entry.Outcome != OutcomeSuccess || entry.Code != OutcomeSuccess {
		t.Errorf("Expected SUCCESS/SUCCESS, got %s/%s", entry.Outcome, entry.Code)
	}
	if entry.CorrelationID != "req-123" {
		t.Errorf("Expected correlationId 'req-123', got '%s'", entry.CorrelationID)
	}
	if entry.LatencyMs != 42 {
		t.Errorf("Expected latencyMs 42, got %d", entry.LatencyMs)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestLogActionFailure(t *testing.T) {
	logger := newTestLogger(t)

	logger.LogAction(context.Background(), "ingest", 2, "STORAGE_ERROR", time.Millisecond)

	entry := readEntries(t, logger)[0]
	if entry.Outcome != OutcomeFailure {
		t.Errorf("Expected outcome FAILURE, got %s", entry.Outcome)
	}
	if entry.Code != "STORAGE_ERROR" {
		t.Errorf("Expected code STORAGE_ERROR, got %s", entry.Code)
	}
}

func TestLogActionAppends(t *testing.T) {
	logger := newTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.LogAction(context.Background(), "ingest", n, "", 0)
		}(i)
	}
	wg.Wait()

	if got := len(readEntries(t, logger)); got != 25 {
		t.Errorf("Expected 25 entries, got %d", got)
	}
}

func TestRotate(t *testing.T) {
	logger := newTestLogger(t)

	logger.LogAction(context.Background(), "ingest", 1, "", 0)
	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate() failed: %v", err)
	}
	logger.LogAction(context.Background(), "ingest", 2, "", 0)

	entries := readEntries(t, logger)
	if len(entries) != 1 || entries[0].Count != 2 {
		t.Errorf("Expected only the post-rotation entry, got %+v", entries)
	}

	files, err := os.ReadDir(filepath.Dir(logger.GetFilePath()))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(files) < 2 {
		t.Errorf("Expected a rotated backup next to the audit file, found %d files", len(files))
	}
}
