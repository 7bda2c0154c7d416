package record

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// AccelerometerReading holds the three accelerometer axes.
type AccelerometerReading struct {
	X Number `json:"x"`
	Y Number `json:"y"`
	Z Number `json:"z"`
}

// GpsReading holds a position in degrees. Ranges are not checked.
type GpsReading struct {
	Latitude  Number `json:"latitude"`
	Longitude Number `json:"longitude"`
}

// AgentReading is one nested reading as submitted by an agent.
type AgentReading struct {
	Accelerometer *AccelerometerReading `json:"accelerometer"`
	GPS           *GpsReading           `json:"gps"`
	Timestamp     Timestamp             `json:"timestamp"`
}

// IncomingBatchItem is a single element of an ingestion request body.
type IncomingBatchItem struct {
	RoadState Label         `json:"road_state"`
	AgentData *AgentReading `json:"agent_data"`
}

// StoredRecordInput is a validated, flattened row that has not been assigned
// an identifier yet.
type StoredRecordInput struct {
	RoadState string
	X         float64
	Y         float64
	Z         float64
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// StoredRecord is a persisted row. Records are immutable once stored.
type StoredRecord struct {
	ID        int64     `json:"id"`
	RoadState string    `json:"road_state"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// WithID returns the stored form of in under the given identifier.
func (in StoredRecordInput) WithID(id int64) StoredRecord {
	return StoredRecord{
		ID:        id,
		RoadState: in.RoadState,
		X:         in.X,
		Y:         in.Y,
		Z:         in.Z,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Timestamp: in.Timestamp,
	}
}

// Number is a measurement as received. Decoding keeps the raw JSON token so
// that a malformed value is reported per field instead of failing the whole
// request body.
type Number struct {
	raw   []byte
	value float64
	typed bool
}

// Float returns a Number holding v.
func Float(v float64) Number {
	return Number{value: v, typed: true}
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.raw = append([]byte(nil), data...)
	n.value = 0
	n.typed = false
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.typed {
		return json.Marshal(n.value)
	}
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Float64 converts the measurement. JSON numbers and numeric strings are
// accepted; the result must be finite.
func (n Number) Float64() (float64, error) {
	var v float64
	switch {
	case n.typed:
		v = n.value
	case isNull(n.raw):
		return 0, errMissing
	default:
		text := string(n.raw)
		if n.raw[0] == '"' {
			if err := json.Unmarshal(n.raw, &text); err != nil {
				return 0, errNotNumber
			}
			text = strings.TrimSpace(text)
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, errNotNumber
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// Label is the free-text road-state classification.
type Label struct {
	raw   []byte
	value string
	typed bool
}

// Text returns a Label holding s.
func Text(s string) Label {
	return Label{value: s, typed: true}
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (l *Label) UnmarshalJSON(data []byte) error {
	l.raw = append([]byte(nil), data...)
	l.value = ""
	l.typed = false
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Label) MarshalJSON() ([]byte, error) {
	if l.typed {
		return json.Marshal(l.value)
	}
	if len(l.raw) == 0 {
		return []byte("null"), nil
	}
	return l.raw, nil
}

// String returns the label. Only JSON strings are accepted; the empty string is
// a valid label.
func (l Label) String() (string, error) {
	if l.typed {
		return l.value, nil
	}
	if isNull(l.raw) || l.raw[0] != '"' {
		return "", errNotString
	}
	var s string
	if err := json.Unmarshal(l.raw, &s); err != nil {
		return "", errNotString
	}
	return s, nil
}

// Timestamp is the reading time. It is either an already-typed instant or the
// raw JSON value received from an agent.
type Timestamp struct {
	raw   []byte
	value time.Time
	typed bool
}

// At returns a Timestamp holding t.
func At(t time.Time) Timestamp {
	return Timestamp{value: t, typed: true}
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.raw = append([]byte(nil), data...)
	t.value = time.Time{}
	t.typed = false
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.typed {
		return json.Marshal(t.value)
	}
	if len(t.raw) == 0 {
		return []byte("null"), nil
	}
	return t.raw, nil
}

// Time resolves the instant. Typed instants are returned as-is; raw values
// must be ISO-8601 strings.
func (t Timestamp) Time() (time.Time, error) {
	if t.typed {
		return t.value, nil
	}
	if isNull(t.raw) || t.raw[0] != '"' {
		return time.Time{}, errNotISO8601
	}
	var s string
	if err := json.Unmarshal(t.raw, &s); err != nil {
		return time.Time{}, errNotISO8601
	}
	return ParseISO8601(s)
}

// isoLayouts are tried in order. Values without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO8601 parses the ISO-8601 forms agents are known to send.
func ParseISO8601(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errNotISO8601
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
