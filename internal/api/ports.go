// Package api defines ports (interfaces) for API server dependencies.
package api

import (
	"context"

	"github.com/o-litvinchuk-dev/lab3/internal/ingest"
	"github.com/o-litvinchuk-dev/lab3/internal/query"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
	"github.com/o-litvinchuk-dev/lab3/internal/storage"
	"github.com/o-litvinchuk-dev/lab3/internal/telemetry"
)

// IngestPort defines the minimal interface the API needs from ingestion.
type IngestPort interface {
	Ingest(ctx context.Context, batch []record.IncomingBatchItem) (ingest.Ack, error)
}

// QueryPort defines the minimal interface for record reads.
type QueryPort interface {
	List(ctx context.Context) ([]record.StoredRecord, error)
}

// SubscriptionPort defines the minimal interface the API needs from the
// subscriber registry.
type SubscriptionPort interface {
	Serve(ctx context.Context, conn telemetry.Conn) error
	Count() int
}

// HealthPort reports whether storage is reachable.
type HealthPort interface {
	Ping(ctx context.Context) error
}

// Compile-time assertions for port conformance
var _ IngestPort = (*ingest.Service)(nil)
var _ QueryPort = (*query.Service)(nil)
var _ SubscriptionPort = (*telemetry.Hub)(nil)
var _ HealthPort = (storage.Store)(nil)
