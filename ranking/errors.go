package ranking

import "errors"

var (
	// ErrMissingEmbedding is returned when a candidate reaches ranking without a vector.
	ErrMissingEmbedding = errors.New("candidate has no embedding")

	// ErrDimensionMismatch is returned when vector lengths differ.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidScore is returned when a similarity is not a number.
	ErrInvalidScore = errors.New("similarity is not a number")
)
