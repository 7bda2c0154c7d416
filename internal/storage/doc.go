// Package storage persists flattened telemetry records.
//
// Store is the gateway used by the ingestion and query services. Postgres is
// the production implementation over a pgxpool connection pool; Memory keeps
// rows in process memory for local runs and tests. Every failure crossing the
// gateway is reported as an *Error naming the operation.
package storage
