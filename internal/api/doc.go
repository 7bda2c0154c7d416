// Package api implements the HTTP surface of the telemetry service.
//
// Agents POST batches to /processed_agent_data/ and read every stored record
// back with GET on the same path. Live subscribers connect to /ws and receive
// one text message per committed record. Responses use a single JSON
// envelope with a correlation id.
package api
