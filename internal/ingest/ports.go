package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

// Store is the storage capability ingestion needs.
type Store interface {
	InsertBatch(ctx context.Context, records []record.StoredRecordInput) ([]record.StoredRecord, error)
}

// Broadcaster fans stored records out to live subscribers.
type Broadcaster interface {
	Broadcast(rec record.StoredRecord)
}

// AuditLogger interface for writing audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, count int, code string, latency time.Duration)
}

// Metrics records ingestion outcomes.
type Metrics interface {
	ObserveIngest(outcome string, accepted int, elapsed time.Duration)
}

// ErrValidation indicates at least one item of the batch is malformed. The
// wrapped record.ValidationErrors lists the failures.
var ErrValidation = errors.New("VALIDATION_FAILED")

// ErrStorage indicates the batch could not be stored. Nothing was stored.
var ErrStorage = errors.New("STORAGE_ERROR")
