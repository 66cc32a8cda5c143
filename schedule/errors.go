package schedule

import "errors"

// Error types for the schedule package.
var (
	// ErrOutOfRange is returned when a node index is outside [0, Len()).
	ErrOutOfRange = errors.New("node index out of range")

	// ErrNotBand is returned when a band-only operation targets another kind.
	ErrNotBand = errors.New("node is not a band")

	// ErrNotSequence is returned when a sequence-only operation targets
	// another kind.
	ErrNotSequence = errors.New("node is not a sequence")

	// ErrBadRow is returned when a row index is outside the band.
	ErrBadRow = errors.New("row index out of range")
)
