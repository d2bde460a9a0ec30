// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rerank

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/rankit/ai"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/pipeline"
	"github.com/poiesic/rankit/ranking"
	"github.com/poiesic/rankit/storage"
)

// Config holds configuration for a rerank.
type Config struct {
	// BatchSize is the number of candidate texts embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      16,
		ReportInterval: 1,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reranker re-embeds and re-ranks persisted jobs.
type Reranker struct {
	repo     storage.JobRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReranker creates a reranker.
// progress: where to write progress output (typically os.Stderr, may be nil)
func NewReranker(repo storage.JobRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reranker, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxRetries < 1 {
		return nil, pipeline.ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reranker{
		repo:     repo,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reranker"),
	}, nil
}

// Run re-embeds every candidate of jobID and the job's query, ranks them again
// and stores the outcome. Candidates whose new vector does not match the
// query's dimension are stored unranked. It returns the refreshed results.
func (r *Reranker) Run(ctx context.Context, jobID string) (*core.ResultPayload, error) {
	job, err := r.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	candidates, err := r.repo.GetCandidates(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandidates, jobID)
	}

	logger := r.logger.With("job", jobID)
	fmt.Fprintf(r.progress, "Re-embedding %d documents of job %s (batch size: %d)\n",
		len(candidates), jobID, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, len(candidates), r.config.ReportInterval)
	tracker.Start()

	for start := 0; start < len(candidates); start += r.config.BatchSize {
		batch := candidates[start:min(start+r.config.BatchSize, len(candidates))]
		if err := r.embedBatch(ctx, batch); err != nil {
			return nil, err
		}
		tracker.Add(len(batch))
	}
	tracker.Finish()

	var query []float32
	err = pipeline.RetryWithBackoff(ctx, func() error {
		var err error
		query, err = r.embedder.EmbedText(ctx, job.Query)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query after %d attempts: %w", r.config.MaxRetries, err)
	}
	query = ranking.NormalizeVector(query)

	valid := make([]*core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Score, c.Rank = 0, 0
		if len(c.Vector) == 0 || len(c.Vector) != len(query) {
			logger.Warn("leaving candidate unranked: unusable embedding",
				"candidate", c.ID, "dimensions", len(c.Vector), "expected", len(query))
			continue
		}
		valid = append(valid, c)
	}

	rankings, err := ranking.Rank(valid, query)
	if err != nil {
		return nil, fmt.Errorf("failed to rank documents: %w", err)
	}

	byID := make(map[core.ID]*core.Candidate, len(valid))
	for _, c := range valid {
		byID[c.ID] = c
	}
	for _, result := range rankings {
		c := byID[result.CandidateID]
		c.Score = result.Score
		c.Rank = result.Rank
	}

	if err := r.repo.UpdateResults(ctx, jobID, candidates); err != nil {
		return nil, fmt.Errorf("failed to update results: %w", err)
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Rerank complete. Ranked %d of %d documents in %v\n",
		len(rankings), len(candidates), elapsed.Round(time.Millisecond))
	logger.Info("rerank complete", "ranked", len(rankings), "candidates", len(candidates))

	return r.repo.GetResults(ctx, jobID)
}

// embedBatch replaces the vectors of batch with fresh, normalized embeddings.
func (r *Reranker) embedBatch(ctx context.Context, batch []*core.Candidate) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var embeddings [][]float32
	err := pipeline.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", ai.ErrEmbeddingCount, len(batch), len(embeddings))
	}

	for i, c := range batch {
		c.Vector = ranking.NormalizeVector(embeddings[i])
	}
	return nil
}
