package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS processed_agent_data (
	id BIGSERIAL PRIMARY KEY,
	road_state TEXT NOT NULL,
	x DOUBLE PRECISION NOT NULL,
	y DOUBLE PRECISION NOT NULL,
	z DOUBLE PRECISION NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
)`

	insertSQL = `INSERT INTO processed_agent_data (road_state, x, y, z, latitude, longitude, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

	listSQL = `SELECT id, road_state, x, y, z, latitude, longitude, timestamp
FROM processed_agent_data
ORDER BY id ASC`
)

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Postgres is the PostgreSQL-backed Store.
type Postgres struct {
	db DB
}

// NewPostgres wraps an open pool.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pool for cfg and waits for the database to answer a ping,
// retrying with exponential backoff for up to cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg config.StorageConfig, log logging.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, opError(OpConnect, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	attempt := 0
	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			// A config the pool rejects will not improve on retry.
			return nil, backoff.Permanent(err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.ConnectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn(ctx, "database not ready, retrying",
				logging.String("host", cfg.Host),
				logging.Int("attempt", attempt),
				logging.Duration("retry_in", next),
				logging.Err(err),
			)
		}),
	)
	if err != nil {
		return nil, opError(OpConnect, err)
	}

	log.Info(ctx, "connected to database",
		logging.String("host", cfg.Host),
		logging.String("database", cfg.Database),
		logging.Int("attempts", attempt),
	)
	return NewPostgres(pool), nil
}

// EnsureSchema creates the records table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createTableSQL); err != nil {
		return opError(OpEnsureSchema, err)
	}
	return nil
}

// InsertBatch implements Store. All rows go through one transaction.
func (p *Postgres) InsertBatch(ctx context.Context, records []record.StoredRecordInput) ([]record.StoredRecord, error) {
	if len(records) == 0 {
		return []record.StoredRecord{}, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "storage.InsertBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(records)))

	stored, err := p.insertBatch(ctx, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, opError(OpInsertBatch, err)
	}
	return stored, nil
}

func (p *Postgres) insertBatch(ctx context.Context, records []record.StoredRecordInput) ([]record.StoredRecord, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]record.StoredRecord, 0, len(records))
	for _, in := range records {
		var id int64
		err := tx.QueryRow(ctx, insertSQL,
			in.RoadState, in.X, in.Y, in.Z, in.Latitude, in.Longitude, in.Timestamp,
		).Scan(&id)
		if err != nil {
			return nil, rollback(ctx, tx, err)
		}
		stored = append(stored, in.WithID(id))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, rollback(ctx, tx, err)
	}
	return stored, nil
}

// rollback aborts tx and returns cause, joined with the rollback failure if any.
// It runs detached from ctx so a cancelled request still releases the transaction.
func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Join(cause, err)
	}
	return cause
}

// ListAll implements Store.
func (p *Postgres) ListAll(ctx context.Context) ([]record.StoredRecord, error) {
	rows, err := p.db.Query(ctx, listSQL)
	if err != nil {
		return nil, opError(OpListAll, err)
	}
	defer rows.Close()

	out := []record.StoredRecord{}
	for rows.Next() {
		var rec record.StoredRecord
		if err := rows.Scan(
			&rec.ID, &rec.RoadState,
			&rec.X, &rec.Y, &rec.Z,
			&rec.Latitude, &rec.Longitude,
			&rec.Timestamp,
		); err != nil {
			return nil, opError(OpListAll, err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, opError(OpListAll, err)
	}
	return out, nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return opError(OpPing, err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close() {
	p.db.Close()
}

const tracerName = "github.com/o-litvinchuk-dev/lab3/internal/storage"
