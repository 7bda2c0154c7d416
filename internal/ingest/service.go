package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/observability"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

const tracerName = "github.com/o-litvinchuk-dev/lab3/internal/ingest"

// ActionIngest is the audit action name for a batch submission.
const ActionIngest = "ingest"

// Ack acknowledges a stored batch.
type Ack struct {
	Accepted int     `json:"accepted"`
	IDs      []int64 `json:"ids"`
}

// Service validates, stores and broadcasts batches.
type Service struct {
	store       Store
	broadcaster Broadcaster
	log         logging.Logger
	tracer      trace.Tracer

	auditLogger AuditLogger
	metrics     Metrics
}

// NewService creates an ingestion service. broadcaster may be nil.
func NewService(store Store, broadcaster Broadcaster, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		log:         log.With(logging.String("component", "ingest")),
		tracer:      otel.Tracer(tracerName),
	}
}

// SetAuditLogger sets the audit logger.
func (s *Service) SetAuditLogger(logger AuditLogger) {
	s.auditLogger = logger
}

// SetMetrics sets the metrics recorder.
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

// Ingest validates every item of batch, stores the batch atomically and
// broadcasts each stored record in submission order.
//
// A validation failure returns an error wrapping ErrValidation and the
// record.ValidationErrors for all failing items; nothing is stored. A storage
// failure returns an error wrapping ErrStorage and the storage error; nothing
// is broadcast.
func (s *Service) Ingest(ctx context.Context, batch []record.IncomingBatchItem) (Ack, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "ingest.Batch",
		trace.WithAttributes(attribute.Int("batch.size", len(batch))),
	)
	defer span.End()

	inputs, verrs := validateBatch(batch)
	if len(verrs) > 0 {
		span.SetStatus(codes.Error, "validation failed")
		s.log.Info(ctx, "batch rejected",
			logging.Int("items", len(batch)),
			logging.Int("field_errors", len(verrs)),
		)
		s.finish(ctx, observability.OutcomeInvalid, 0, ErrValidation.Error(), start)
		return Ack{}, fmt.Errorf("%w: %w", ErrValidation, verrs)
	}

	if len(inputs) == 0 {
		s.finish(ctx, observability.OutcomeAccepted, 0, "", start)
		return Ack{Accepted: 0, IDs: []int64{}}, nil
	}

	// A disconnecting client must not abort a batch mid-commit.
	stored, err := s.store.InsertBatch(context.WithoutCancel(ctx), inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		s.log.Error(ctx, "failed to store batch",
			logging.Int("items", len(inputs)),
			logging.Err(err),
		)
		s.finish(ctx, observability.OutcomeFailed, 0, ErrStorage.Error(), start)
		return Ack{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	ids := make([]int64, 0, len(stored))
	for _, rec := range stored {
		ids = append(ids, rec.ID)
		if s.broadcaster != nil {
			s.broadcaster.Broadcast(rec)
		}
	}

	span.SetAttributes(attribute.Int("batch.accepted", len(stored)))
	s.log.Debug(ctx, "batch stored", logging.Int("accepted", len(stored)))
	s.finish(ctx, observability.OutcomeAccepted, len(stored), "", start)

	return Ack{Accepted: len(stored), IDs: ids}, nil
}

// validateBatch flattens every item, collecting failures across the batch.
func validateBatch(batch []record.IncomingBatchItem) ([]record.StoredRecordInput, record.ValidationErrors) {
	inputs := make([]record.StoredRecordInput, 0, len(batch))
	var all record.ValidationErrors

	for i, item := range batch {
		in, err := record.ValidateAndFlatten(item)
		if err != nil {
			var verrs record.ValidationErrors
			if errors.As(err, &verrs) {
				all = append(all, verrs.WithIndex(i)...)
			} else {
				all = append(all, &record.ValidationError{Index: i, Reason: err.Error()})
			}
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, all
}

func (s *Service) finish(ctx context.Context, outcome string, accepted int, code string, start time.Time) {
	elapsed := time.Since(start)
	if s.auditLogger != nil {
		s.auditLogger.LogAction(ctx, ActionIngest, accepted, code, elapsed)
	}
	if s.metrics != nil {
		s.metrics.ObserveIngest(outcome, accepted, elapsed)
	}
}
