package plan

import (
	"errors"
	"fmt"

	"github.com/voltaicdata/voltaic/pkg/catalog"
)

// FieldError reports a length, pattern, or range violation on one field.
// Value is the received value, formatted for display.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ShapeError reports a malformed view sequence: wrong length, wrong position,
// or an unrecognized view tag.
type ShapeError struct {
	Value  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid views: %s, got %s", e.Reason, e.Value)
}

// TemporalError reports a year-ordering or future-year violation. These are
// the only rules whose outcome depends on something other than the input
// itself (the clock), so they get their own type.
type TemporalError struct {
	Field  string
	Value  string
	Reason string
}

func (e *TemporalError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidationError reports whether err came from plan validation: a field,
// shape, or temporal violation, or a catalog lookup miss. Transport and
// storage failures are a separate taxonomy and return false, so callers can
// map validation errors to a client fault and everything else to a server
// fault.
func IsValidationError(err error) bool {
	var fieldErr *FieldError
	var shapeErr *ShapeError
	var temporalErr *TemporalError
	return errors.As(err, &fieldErr) ||
		errors.As(err, &shapeErr) ||
		errors.As(err, &temporalErr) ||
		errors.Is(err, catalog.ErrUnknownDataset) ||
		errors.Is(err, catalog.ErrUnknownMetric)
}
