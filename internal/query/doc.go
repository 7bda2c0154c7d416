// Package query serves reads of stored telemetry records.
package query
