package domain

import "errors"

var (
	// ErrNoImagery is returned when no scene passes the location, date and
	// cloud filters for the requested month.
	ErrNoImagery = errors.New("no imagery available")

	// ErrShapeMismatch reports a dimensionality disagreement between the
	// feature vector, the scaling transform or the model parameters.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidCoordinate marks missing, non-finite or out-of-range input.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)
