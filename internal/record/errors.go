package record

import (
	"errors"
	"fmt"
	"strings"
)

// Reasons reported in ValidationError.
var (
	errMissing    = errors.New("missing")
	errNotNumber  = errors.New("expected number")
	errNotFinite  = errors.New("expected finite number")
	errNotString  = errors.New("expected string")
	errNotISO8601 = errors.New("expected ISO-8601")
)

// ValidationError describes one malformed or missing field of a batch item.
// Index is the position of the item in its batch.
type ValidationError struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: %s: %s", e.Index, e.Field, e.Reason)
}

// ValidationErrors collects every failing field of one or more items.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// WithIndex returns a copy of v with every entry attributed to the item at index.
func (v ValidationErrors) WithIndex(index int) ValidationErrors {
	out := make(ValidationErrors, 0, len(v))
	for _, e := range v {
		c := *e
		c.Index = index
		out = append(out, &c)
	}
	return out
}
