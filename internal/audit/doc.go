// Package audit implements the ingestion audit trail.
//
// Every ingestion call appends one JSON line with the correlation id, record
// count, outcome, result code and latency. The file is size-rotated.
package audit
