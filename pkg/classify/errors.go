package classify

import "errors"

// Classification errors. Both are local to one sample and one family:
// the sample is excluded from that family's counts and the run continues.
var (
	// ErrInvalidValue is returned when a metric value is NaN, negative
	// where disallowed, or outside the metric's domain (e.g. a Dice
	// coefficient outside [0, 1]). Invalid values are never silently
	// coerced to a status.
	ErrInvalidValue = errors.New("invalid metric value")

	// ErrMissingSubmetric is returned when a record lacks a value the
	// family's rule requires.
	ErrMissingSubmetric = errors.New("missing required sub-metric")
)
