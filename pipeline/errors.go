package pipeline

import "errors"

var (
	// ErrStatusStoreRequired is returned when a status store is not provided.
	ErrStatusStoreRequired = errors.New("status store required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("text extractor required")

	// ErrParserRequired is returned when a field parser is not provided.
	ErrParserRequired = errors.New("field parser required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrJobExists is returned when submitting a job ID that is already tracked.
	ErrJobExists = errors.New("job already exists")

	// ErrJobNotCompleted is returned when results are requested before a job completed.
	ErrJobNotCompleted = errors.New("job not completed")

	// ErrNoTextExtracted fails a job when no document yielded usable text.
	ErrNoTextExtracted = errors.New("no text could be extracted from any document")

	// ErrEmbeddingFailed fails a job when the batched embedding call fails.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrRankingFailed fails a job when ranking cannot be computed.
	ErrRankingFailed = errors.New("ranking failed")
)
