// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability
