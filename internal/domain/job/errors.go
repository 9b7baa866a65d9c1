package job

import "errors"

var (
	// ErrNotFound is returned when no job exists for a requested id.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady is returned when an artifact is requested before the
	// job has finished successfully.
	ErrNotReady = errors.New("job output not ready")
)
