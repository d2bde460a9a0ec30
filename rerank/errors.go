package rerank

import "errors"

var (
	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("job repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoCandidates is returned when a persisted job has no candidates to rank.
	ErrNoCandidates = errors.New("job has no candidates")
)
