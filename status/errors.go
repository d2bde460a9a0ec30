package status

import "errors"

var (
	// ErrJobNotFound is returned when no status record exists for a job.
	ErrJobNotFound = errors.New("job not found")
)
