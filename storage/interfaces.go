package storage

import (
	"context"

	"github.com/poiesic/rankit/core"
)

// JobRepository persists completed jobs and their ranked candidates.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// SaveJob stores the job, its candidates (job.Candidates) and the
	// detailed scores carried by result in a single atomic write. Saving a
	// job ID that already exists replaces it entirely.
	SaveJob(ctx context.Context, job *core.Job, result *core.ResultPayload) error

	// GetJob retrieves a job without its candidates.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, jobID string) (*core.Job, error)

	// GetCandidates retrieves a job's candidates in upload order, including
	// their text and embeddings.
	// Returns ErrNotFound if the job doesn't exist.
	GetCandidates(ctx context.Context, jobID string) ([]*core.Candidate, error)

	// GetResults rebuilds the result payload of a persisted job, with
	// rankings ordered by rank.
	// Returns ErrNotFound if the job doesn't exist.
	GetResults(ctx context.Context, jobID string) (*core.ResultPayload, error)

	// ListJobs returns all persisted jobs, most recently created first.
	ListJobs(ctx context.Context) ([]*core.Job, error)

	// UpdateResults overwrites the vector, score and rank of existing
	// candidates of a job. Parsed fields and detailed scores are kept.
	// Returns ErrNotFound if the job or any candidate doesn't exist.
	UpdateResults(ctx context.Context, jobID string, candidates []*core.Candidate) error

	// DeleteJob removes a job and all of its candidates.
	// Returns ErrNotFound if the job doesn't exist.
	DeleteJob(ctx context.Context, jobID string) error

	// Close releases resources held by the repository.
	Close() error
}
