package queue

import "errors"

// ErrStorageUnavailable wraps every failure of the backing SQLite file.
// Callers treat it as "the local disk is unusable" and degrade: a failed
// enqueue must not mask the send error that caused it.
var ErrStorageUnavailable = errors.New("queue: local storage unavailable")
