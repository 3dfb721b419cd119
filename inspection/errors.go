package inspection

import "errors"

var (
	// ErrValidation marks payloads the server refuses outright. The whole
	// transaction is rolled back; nothing of the submission is kept.
	ErrValidation = errors.New("inspection: invalid submission")

	// ErrNotFound is returned for lookups of missing inspections.
	ErrNotFound = errors.New("inspection: not found")
)
