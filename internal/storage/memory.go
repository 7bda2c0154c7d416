package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

// ErrClosed is returned by a Memory store after Close.
var ErrClosed = errors.New("store closed")

// Memory is a Store kept in process memory. Identifiers start at 1 and are
// never reused.
type Memory struct {
	mu     sync.RWMutex
	rows   []record.StoredRecord
	nextID int64
	closed bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// InsertBatch implements Store.
func (m *Memory) InsertBatch(ctx context.Context, records []record.StoredRecordInput) ([]record.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, opError(OpInsertBatch, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, opError(OpInsertBatch, ErrClosed)
	}

	stored := make([]record.StoredRecord, 0, len(records))
	for _, in := range records {
		stored = append(stored, in.WithID(m.nextID))
		m.nextID++
	}
	m.rows = append(m.rows, stored...)
	return stored, nil
}

// ListAll implements Store.
func (m *Memory) ListAll(ctx context.Context) ([]record.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, opError(OpListAll, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, opError(OpListAll, ErrClosed)
	}

	out := make([]record.StoredRecord, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return opError(OpPing, ErrClosed)
	}
	return nil
}

// Close implements Store.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
