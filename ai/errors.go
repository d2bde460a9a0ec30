package ai

import "errors"

// ErrEmbeddingCount is returned when an embedding service answers with a
// different number of vectors than texts it was given.
var ErrEmbeddingCount = errors.New("embedding count does not match input count")
