//
//
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
)

// FileName is the audit file created inside the configured directory.
const FileName = "audit.jsonl"

// Outcomes recorded in Entry.Outcome.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp     time.Time `json:"ts"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Action        string    `json:"action"`
	Count         int       `json:"count"`
	Outcome       string    `json:"outcome"`
	Code          string    `json:"code"`
	LatencyMs     int64     `json:"latencyMs"`
}

// Logger appends audit entries to a rotating JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
}

// NewLogger creates the audit directory and prepares the rotating writer.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, FileName)
	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		},
	}, nil
}

// LogAction records one action. The correlation id is taken from ctx.
func (l *Logger) LogAction(ctx context.Context, action string, count int, code string, latency time.Duration) {
	outcome := OutcomeSuccess
	if code != "" && code != OutcomeSuccess {
		outcome = OutcomeFailure
	}
	if code == "" {
		code = OutcomeSuccess
	}

	l.writeEntry(Entry{
		Timestamp:     time.Now().UTC(),
		CorrelationID: logging.RequestIDFromContext(ctx),
		Action:        action,
		Count:         count,
		Outcome:       outcome,
		Code:          code,
		LatencyMs:     latency.Milliseconds(),
	})
}

// writeEntry writes an audit entry to the log file.
func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Close closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate starts a new audit file, keeping the current one as a backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.out.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return nil
}
