// Package telemetry implements the live subscriber registry.
//
// The hub fans out every committed record to all connected subscribers. Each
// subscriber owns a bounded FIFO queue drained by its own writer goroutine, so
// a slow or broken peer never delays delivery to the others or the caller of
// Broadcast. A subscriber whose queue overflows or whose write fails is
// unregistered. Nothing is retained for subscribers that connect later.
package telemetry
