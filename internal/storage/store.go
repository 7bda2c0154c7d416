package storage

import (
	"context"
	"fmt"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

// Operation names carried by Error.
const (
	OpInsertBatch  = "insert_batch"
	OpListAll      = "list_all"
	OpPing         = "ping"
	OpEnsureSchema = "ensure_schema"
	OpConnect      = "connect"
)

// Store is the row store gateway.
type Store interface {
	// InsertBatch stores records atomically and returns them with their
	// assigned identifiers, in input order. Either every record is stored or
	// none is.
	InsertBatch(ctx context.Context, records []record.StoredRecordInput) ([]record.StoredRecord, error)

	// ListAll returns every stored record ordered by identifier. The result is
	// never nil.
	ListAll(ctx context.Context) ([]record.StoredRecord, error)

	Ping(ctx context.Context) error
	Close()
}

// Error is a storage failure tagged with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// New opens the store selected by cfg.Driver. The postgres driver connects
// with retry and makes sure the table exists.
func New(ctx context.Context, cfg config.StorageConfig, log logging.Logger) (Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Info(ctx, "using in-memory store")
		return NewMemory(), nil
	case "postgres", "":
		pg, err := Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
