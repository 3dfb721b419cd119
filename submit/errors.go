package submit

import (
	"errors"
	"fmt"
)

// ErrAborted marks a save that exceeded the submission deadline. Aborted
// saves are NOT queued: the server may have committed before the deadline
// hit, and auto-retrying would risk a duplicate inspection. The user
// decides whether to try again.
var ErrAborted = errors.New("submit: save deadline exceeded")

// ServerError is a non-2xx response from the server: the payload reached
// it and was refused, so retrying the same bytes will not help.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("submit: server returned %d", e.Status)
	}
	return fmt.Sprintf("submit: server returned %d: %s", e.Status, e.Message)
}
