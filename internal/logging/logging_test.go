package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "debug", Format: "json"})

	log.With(String("component", "ingest")).Info(context.Background(), "batch committed",
		Int("accepted", 3),
		Err(errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "batch committed" {
		t.Errorf("Unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "ingest" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
	if entry["accepted"] != float64(3) {
		t.Errorf("Expected accepted=3, got %v", entry["accepted"])
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error=boom, got %v", entry["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn"})

	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("Info line should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("Warn line missing")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatal("EnsureRequestID returned empty id")
	}

	again, sameID := EnsureRequestID(ctx)
	if sameID != id || RequestIDFromContext(again) != id {
		t.Errorf("Expected existing id %s to be kept, got %s", id, sameID)
	}

	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Format: "json"})
	log.Info(ctx, "with id")
	if !strings.Contains(buf.String(), id) {
		t.Errorf("Expected request id in %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadwatch.log")
	log, closer := New(Config{File: path, MaxSizeMB: 1})

	log.Error(context.Background(), "written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Log file missing entry: %q", data)
	}
}

func TestNoop(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Debug(context.Background(), "ignored")
	log.Error(context.Background(), "ignored")
}
