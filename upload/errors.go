package upload

import "errors"

var (
	// ErrUnsupportedType is returned for files whose extension is not accepted.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned for files over the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidJobID is returned for job IDs that cannot name a directory.
	ErrInvalidJobID = errors.New("invalid job id")
)
