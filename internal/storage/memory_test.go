package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

func TestMemoryInsertAndList(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	rows, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("Expected empty non-nil slice, got %v", rows)
	}

	first, err := store.InsertBatch(ctx, sampleInputs())
	if err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}
	second, err := store.InsertBatch(ctx, sampleInputs()[:1])
	if err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	if first[0].ID != 1 || first[1].ID != 2 || second[0].ID != 3 {
		t.Errorf("Ids not monotonic: %d %d %d", first[0].ID, first[1].ID, second[0].ID)
	}

	rows, err = store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.ID != int64(i+1) {
			t.Errorf("Row %d has id %d", i, row.ID)
		}
	}
}

func TestMemoryListReturnsCopy(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, err := store.InsertBatch(ctx, sampleInputs()); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	rows, _ := store.ListAll(ctx)
	rows[0].RoadState = "mutated"

	again, _ := store.ListAll(ctx)
	if again[0].RoadState != "pothole" {
		t.Error("Stored records must not be mutable through ListAll results")
	}
}

func TestMemoryConcurrentInserts(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.InsertBatch(ctx, sampleInputs()); err != nil {
				t.Errorf("InsertBatch() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rows, _ := store.ListAll(ctx)
	if len(rows) != 40 {
		t.Fatalf("Expected 40 rows, got %d", len(rows))
	}
	seen := make(map[int64]bool)
	for _, row := range rows {
		if seen[row.ID] {
			t.Errorf("Duplicate id %d", row.ID)
		}
		seen[row.ID] = true
	}
}

func TestMemoryClosed(t *testing.T) {
	store := NewMemory()
	store.Close()

	_, err := store.InsertBatch(context.Background(), sampleInputs())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("InsertBatch after Close: got %v, want ErrClosed", err)
	}
	if err := store.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping after Close: got %v, want ErrClosed", err)
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	store := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.InsertBatch(ctx, []record.StoredRecordInput{{RoadState: "normal"}})
	var serr *Error
	if !errors.As(err, &serr) || serr.Op != OpInsertBatch {
		t.Fatalf("Expected insert_batch storage error, got %v", err)
	}

	rows, _ := store.ListAll(context.Background())
	if len(rows) != 0 {
		t.Error("Cancelled insert must not store anything")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := config.Defaults().Storage
	cfg.Driver = "memory"

	store, err := New(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("New(memory) failed: %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Errorf("Expected *Memory, got %T", store)
	}

	cfg.Driver = "cassandra"
	if _, err := New(context.Background(), cfg, logging.Noop()); err == nil {
		t.Error("New() should reject an unknown driver")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: OpListAll, Err: errors.New("timeout")}
	if err.Error() != "storage list_all: timeout" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
