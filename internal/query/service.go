package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

const tracerName = "github.com/o-litvinchuk-dev/lab3/internal/query"

// Store is the storage capability queries need.
type Store interface {
	ListAll(ctx context.Context) ([]record.StoredRecord, error)
}

// Service answers record queries.
type Service struct {
	store Store
	log   logging.Logger
}

// NewService creates a query service over store.
func NewService(store Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{store: store, log: log.With(logging.String("component", "query"))}
}

// List returns every stored record ordered by identifier. The result is
// never nil.
func (s *Service) List(ctx context.Context) ([]record.StoredRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "query.List")
	defer span.End()

	rows, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.log.Error(ctx, "failed to list records", logging.Err(err))
		return nil, fmt.Errorf("list records: %w", err)
	}
	if rows == nil {
		rows = []record.StoredRecord{}
	}

	span.SetAttributes(attribute.Int("records", len(rows)))
	return rows, nil
}
