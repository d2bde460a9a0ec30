package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rankit/ai"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/status"
	"github.com/poiesic/rankit/storage"
)

// DefaultMinTextLength is the minimum count of non-whitespace characters a
// document must yield to be ranked.
const DefaultMinTextLength = 50

// Pipeline runs ranking jobs on a worker pool and publishes their status.
type Pipeline struct {
	store      *status.Store
	extractor  TextExtractor
	parser     FieldParser
	embedder   ai.Embedder
	repository storage.JobRepository // optional

	pool          *ants.Pool
	poolSize      int
	embedAttempts int
	embedDelay    time.Duration
	detailed      bool
	minTextLength int
	cleanups      []CleanupFunc
	now           func() time.Time
	running       sync.WaitGroup
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of jobs that run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRepository persists completed jobs. Without one the persistence stage
// is skipped.
func WithRepository(repo storage.JobRepository) Option {
	return func(p *Pipeline) error {
		p.repository = repo
		return nil
	}
}

// WithEmbedRetries retries the batched embedding call up to attempts times,
// waiting baseDelay before the second attempt and doubling after that.
// Default is a single attempt.
func WithEmbedRetries(attempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.embedAttempts = attempts
		p.embedDelay = baseDelay
		return nil
	}
}

// WithDetailedScoring attaches the heuristic skill, experience and education
// breakdown to every ranked result. It never changes the ranking order.
func WithDetailedScoring(enabled bool) Option {
	return func(p *Pipeline) error {
		p.detailed = enabled
		return nil
	}
}

// WithMinTextLength sets the extraction threshold in non-whitespace characters.
// Default is DefaultMinTextLength.
func WithMinTextLength(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			n = 0
		}
		p.minTextLength = n
		return nil
	}
}

// WithCleanup registers a hook run by Cleanup, after the job's status and
// persisted record are removed.
func WithCleanup(fn CleanupFunc) Option {
	return func(p *Pipeline) error {
		if fn != nil {
			p.cleanups = append(p.cleanups, fn)
		}
		return nil
	}
}

// WithClock overrides the time source used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// NewPipeline creates a pipeline. The store, extractor, parser and embedder
// are required.
func NewPipeline(
	store *status.Store,
	extractor TextExtractor,
	parser FieldParser,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStatusStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if parser == nil {
		return nil, ErrParserRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		store:         store,
		extractor:     extractor,
		parser:        parser,
		embedder:      embedder,
		poolSize:      poolSize,
		embedAttempts: 1,
		minTextLength: DefaultMinTextLength,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	pool, err := ants.NewPool(p.poolSize, ants.WithPanicHandler(func(v any) {
		p.logger.Error("job worker panicked", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Submit validates a job and hands it to a worker. It returns once the job
// is queued; the job's progress is observed through Status. Submit blocks
// only while every worker is busy.
//
// Validation errors are returned synchronously and create no status record.
func (p *Pipeline) Submit(ctx context.Context, jobID string, paths []string, query string) error {
	docs := make([]core.Document, len(paths))
	for i, path := range paths {
		docs[i] = core.Document{Path: path}
	}
	_, err := p.SubmitDocuments(ctx, core.Submission{JobID: jobID, Documents: docs, Query: query})
	return err
}

// SubmitDocuments is Submit for documents that carry display names. An empty
// JobID is replaced by a generated one, which is returned.
func (p *Pipeline) SubmitDocuments(ctx context.Context, sub core.Submission) (string, error) {
	if err := core.ValidateSubmission(&sub); err != nil {
		return "", err
	}
	if sub.JobID == "" {
		sub.JobID = uuid.NewString()
	}
	job := p.newJob(sub)
	if !p.store.Create(job.ID, core.JobStateUploading, 0, "Documents accepted. Processing started.") {
		return "", fmt.Errorf("%w: %s", ErrJobExists, sub.JobID)
	}

	// The job outlives the request that submitted it.
	jobCtx := context.WithoutCancel(ctx)
	p.running.Add(1)
	err := p.pool.Submit(func() {
		defer p.running.Done()
		if err := p.Run(jobCtx, job); err != nil {
			p.logger.Warn("job failed", "job", job.ID, "err", err)
		}
	})
	if err != nil {
		p.running.Done()
		p.store.Set(job.ID, core.JobStateFailed, 0, fmt.Sprintf("Processing failed: %v", err), nil)
		return "", err
	}
	return job.ID, nil
}

func (p *Pipeline) newJob(sub core.Submission) *core.Job {
	now := p.now()
	return &core.Job{
		ID:        sub.JobID,
		Query:     sub.Query,
		Documents: sub.Documents,
		State:     core.JobStateUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Run executes job synchronously on the calling goroutine. Batch-fatal
// problems mark the job failed and are returned. A panic marks the job failed
// before it is re-raised.
func (p *Pipeline) Run(ctx context.Context, job *core.Job) (err error) {
	logger := p.logger.With("job", job.ID)
	tr := newTracker(p.store, job, p.now, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			tr.fail(fmt.Sprintf("Processing failed: %v", r))
			panic(r)
		}
		if err != nil {
			tr.fail(failureMessage(err))
		}
	}()

	logger.Info("starting job", "documents", len(job.Documents), "query_length", len(job.Query))
	tr.step(extractStart, "Starting document processing...")

	candidates, err := p.extractStage(ctx, job, tr, logger)
	if err != nil {
		return err
	}

	p.parseStage(ctx, candidates, tr, logger)

	query, err := p.embedStage(ctx, job, candidates, tr, logger)
	if err != nil {
		return err
	}

	rankings, ranked, err := p.rankStage(job, candidates, query, tr, logger)
	if err != nil {
		return err
	}

	result := &core.ResultPayload{
		JobID:              job.ID,
		TotalDocuments:     len(job.Documents),
		ProcessedDocuments: len(rankings),
		Rankings:           rankings,
		Summary: core.ProcessingSummary{
			Extracted: len(candidates),
			Parsed:    countParsed(candidates),
			Ranked:    len(rankings),
		},
	}
	job.Candidates = ranked
	job.ProcessedDocuments = len(rankings)
	message := fmt.Sprintf("Successfully processed %d documents", len(rankings))

	p.persistStage(ctx, job, result, message, tr, logger)

	tr.complete(message, result)
	logger.Info("job completed", "ranked", len(rankings))
	return nil
}

// stageError is a batch-fatal error of one stage. It matches both its
// sentinel and its cause with errors.Is.
type stageError struct {
	sentinel error
	cause    error
}

func (e *stageError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *stageError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

// failureMessage renders the status message for a batch-fatal error.
func failureMessage(err error) string {
	if errors.Is(err, ErrNoTextExtracted) {
		return "No text could be extracted from any document"
	}
	var se *stageError
	if errors.As(err, &se) {
		switch se.sentinel {
		case ErrEmbeddingFailed:
			return fmt.Sprintf("Failed to generate embeddings: %v", se.cause)
		case ErrRankingFailed:
			return fmt.Sprintf("Failed to rank documents: %v", se.cause)
		}
	}
	return fmt.Sprintf("Processing failed: %v", err)
}

// Status returns a copy of the current status record of a job.
func (p *Pipeline) Status(jobID string) (core.StatusRecord, error) {
	record, ok := p.store.Get(jobID)
	if !ok {
		return core.StatusRecord{}, fmt.Errorf("%w: %s", status.ErrJobNotFound, jobID)
	}
	return record, nil
}

// Results returns the full ranking of a completed job. Jobs no longer in the
// status store are looked up in the repository, when one is configured.
func (p *Pipeline) Results(ctx context.Context, jobID string) ([]core.RankedResult, error) {
	record, ok := p.store.Get(jobID)
	if !ok {
		if p.repository != nil {
			payload, err := p.repository.GetResults(ctx, jobID)
			if err == nil {
				return payload.Rankings, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: %s", status.ErrJobNotFound, jobID)
	}

	if record.State != core.JobStateCompleted || record.Result == nil {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotCompleted, jobID, record.State)
	}
	// The store hands out copies, so the rankings are the caller's own.
	return record.Result.Rankings, nil
}

// Cleanup retires a job: its status record, its persisted record and any
// artifacts owned by registered cleanup hooks. Every step runs even if an
// earlier one fails.
func (p *Pipeline) Cleanup(ctx context.Context, jobID string) error {
	found := p.store.Remove(jobID)

	var errs []error
	if p.repository != nil {
		err := p.repository.DeleteJob(ctx, jobID)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, storage.ErrNotFound):
			errs = append(errs, err)
		}
	}

	for _, fn := range p.cleanups {
		if err := fn(ctx, jobID); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		p.logger.Error("job cleanup failed", "job", jobID, "err", err)
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", status.ErrJobNotFound, jobID)
	}
	p.logger.Info("job cleaned up", "job", jobID)
	return nil
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() {
	p.running.Wait()
}

// Release waits for running jobs and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.running.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
