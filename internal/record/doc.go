// Package record implements the telemetry record model.
//
// Agents submit nested readings (accelerometer, GPS, timestamp) tagged with a
// road-state label. The model converts each reading into the flat row that the
// storage gateway persists and the telemetry hub broadcasts.
//
// Conversion is a pure function: ValidateAndFlatten either returns a
// StoredRecordInput or a ValidationErrors value naming every failing field.
package record
