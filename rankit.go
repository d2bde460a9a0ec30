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

// Package rankit ranks batches of documents against a free-text query.
//
// Service wires the pieces together: a badger job repository, an embedding
// provider, the text extractor and field parser, the status store, the upload
// stager and the processing pipeline.
package rankit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/rankit/ai"
	"github.com/poiesic/rankit/ai/openai"
	"github.com/poiesic/rankit/config"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/extract"
	"github.com/poiesic/rankit/parse"
	"github.com/poiesic/rankit/pipeline"
	"github.com/poiesic/rankit/rerank"
	"github.com/poiesic/rankit/status"
	"github.com/poiesic/rankit/storage"
	"github.com/poiesic/rankit/storage/badger"
	"github.com/poiesic/rankit/upload"
)

// Service is the entry point for ranking documents.
type Service struct {
	backend  *badger.Backend
	repo     storage.JobRepository
	provider ai.Provider
	store    *status.Store
	stager   *upload.Stager
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	config    *config.Config
	provider  ai.Provider
	extractor pipeline.TextExtractor
	logger    *slog.Logger
}

// WithConfig sets the application configuration.
// Default is the configuration Load returns without a file.
func WithConfig(cfg *config.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.config = cfg
	}
}

// WithProvider replaces the OpenAI-compatible embedding provider.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithExtractor replaces the default text extractor.
func WithExtractor(extractor pipeline.TextExtractor) ServiceOption {
	return func(o *serviceOptions) {
		o.extractor = extractor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService opens storage and builds the processing pipeline.
func NewService(opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.config == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		options.config = cfg
	}
	cfg := options.config
	logger := options.logger

	backend, err := badger.OpenBackend(cfg.DataDir, cfg.InMemory)
	if err != nil {
		return nil, err
	}

	repo, err := badger.NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AI())
		if err != nil {
			repo.Close()
			backend.Close()
			return nil, err
		}
	}

	stager, err := upload.NewStager(cfg.UploadDir, upload.WithLogger(logger))
	if err != nil {
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	extractor := options.extractor
	if extractor == nil {
		extractor = extract.NewExtractor(
			extract.WithConfig(extract.Config{Pdftotext: cfg.Extract.Pdftotext}),
			extract.WithLogger(logger),
		)
	}

	store := status.NewStore(status.WithLogger(logger))
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithRepository(repo),
		pipeline.WithEmbedRetries(cfg.Pipeline.EmbedRetries, cfg.Pipeline.RetryDelay),
		pipeline.WithDetailedScoring(cfg.Pipeline.DetailedScoring),
		pipeline.WithMinTextLength(cfg.Pipeline.MinTextLength),
		pipeline.WithCleanup(stager.Remove),
	}
	if cfg.Pipeline.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.WithPoolSize(cfg.Pipeline.PoolSize))
	}

	p, err := pipeline.NewPipeline(store, extractor, parse.NewParser(parse.WithLogger(logger)), provider.Embedder(), pipelineOpts...)
	if err != nil {
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:  backend,
		repo:     repo,
		provider: provider,
		store:    store,
		stager:   stager,
		pipeline: p,
		logger:   logger.With("component", "service"),
	}, nil
}

// Close waits for running jobs and releases every resource.
func (s *Service) Close() error {
	s.pipeline.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing embedding provider", "err", err)
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Error("error closing job repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Rank stages the documents at paths and submits them for ranking against
// query. An empty jobID is replaced by a generated one, which is returned.
// The job runs in the background; follow it with Status or WaitForJob.
func (s *Service) Rank(ctx context.Context, jobID string, paths []string, query string) (string, error) {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	sub := core.Submission{JobID: jobID, Query: query, Documents: make([]core.Document, len(paths))}
	for i, path := range paths {
		sub.Documents[i] = core.Document{Path: path}
	}
	if err := core.ValidateSubmission(&sub); err != nil {
		return "", err
	}
	if _, err := s.pipeline.Status(jobID); err == nil {
		return "", fmt.Errorf("%w: %s", pipeline.ErrJobExists, jobID)
	}
	// A persisted job would be overwritten when the new one completes.
	if _, err := s.repo.GetJob(ctx, jobID); err == nil {
		return "", fmt.Errorf("%w: %s", pipeline.ErrJobExists, jobID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	for i, path := range paths {
		doc, err := s.stager.StageFile(ctx, jobID, path)
		if err != nil {
			s.discardStaged(ctx, jobID)
			return "", err
		}
		sub.Documents[i] = doc
	}

	id, err := s.pipeline.SubmitDocuments(ctx, sub)
	if err != nil {
		s.discardStaged(ctx, jobID)
		return "", err
	}
	return id, nil
}

func (s *Service) discardStaged(ctx context.Context, jobID string) {
	if err := s.stager.Remove(ctx, jobID); err != nil {
		s.logger.Warn("error removing staged documents", "job", jobID, "err", err)
	}
}

// Status returns the current status of a job.
func (s *Service) Status(jobID string) (core.StatusRecord, error) {
	return s.pipeline.Status(jobID)
}

// WaitForJob polls a job every interval until it reaches a terminal state.
func (s *Service) WaitForJob(ctx context.Context, jobID string, interval time.Duration, onUpdate func(core.StatusRecord)) (core.StatusRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		record, err := s.pipeline.Status(jobID)
		if err != nil {
			return core.StatusRecord{}, err
		}
		if onUpdate != nil {
			onUpdate(record)
		}
		if record.State.IsTerminal() {
			return record, nil
		}

		select {
		case <-ctx.Done():
			return record, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Results returns the ranked results of a completed job, from memory or
// from the repository.
func (s *Service) Results(ctx context.Context, jobID string) ([]core.RankedResult, error) {
	return s.pipeline.Results(ctx, jobID)
}

// Summary returns the persisted result payload of a job.
func (s *Service) Summary(ctx context.Context, jobID string) (*core.ResultPayload, error) {
	return s.repo.GetResults(ctx, jobID)
}

// Jobs lists persisted jobs, most recent first.
func (s *Service) Jobs(ctx context.Context) ([]*core.Job, error) {
	return s.repo.ListJobs(ctx)
}

// Delete removes a job's status, persisted record and staged documents.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	return s.pipeline.Cleanup(ctx, jobID)
}

// Rerank re-embeds a persisted job with the service's embedder and ranks it
// again, writing progress to progress.
func (s *Service) Rerank(ctx context.Context, jobID string, cfg *rerank.Config, progress io.Writer) (*core.ResultPayload, error) {
	r, err := rerank.NewReranker(s.repo, s.provider.Embedder(), cfg, progress)
	if err != nil {
		return nil, err
	}
	payload, err := r.Run(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// A tracked completed record now serves the new ranking.
	s.store.ReplaceResult(jobID, payload)
	return payload, nil
}
