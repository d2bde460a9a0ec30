package rerank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/poiesic/rankit/ai/mock"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
	"github.com/poiesic/rankit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuery = "Senior Go engineer with Kubernetes experience"

func setupTestRepo(t *testing.T) *badger.JobRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

// seedJob persists a completed job of n candidates, ranked in upload order.
func seedJob(t *testing.T, repo storage.JobRepository, id string, n int) *core.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &core.Job{
		ID:                 id,
		Query:              testQuery,
		State:              core.JobStateCompleted,
		Progress:           100,
		ProcessedDocuments: n,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	result := &core.ResultPayload{JobID: id, TotalDocuments: n, ProcessedDocuments: n}
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/uploads/%s/%d.pdf", id, i)
		job.Documents = append(job.Documents, core.Document{Path: path})
		c := &core.Candidate{
			ID:     core.CandidateID(id, path),
			Path:   path,
			Name:   fmt.Sprintf("doc%d.pdf", i),
			Text:   fmt.Sprintf("candidate %d text", i),
			Fields: &core.CandidateFields{Name: fmt.Sprintf("Candidate %d", i)},
			Vector: []float32{1, 0},
			Score:  1 - float64(i)/10,
			Rank:   i + 1,
		}
		job.Candidates = append(job.Candidates, c)
		result.Rankings = append(result.Rankings, core.RankedResult{
			CandidateID: c.ID,
			Rank:        c.Rank,
			Detailed:    &core.DetailedScore{Combined: 0.5},
		})
	}
	result.Summary = core.ProcessingSummary{Extracted: n, Parsed: n, Ranked: n}
	require.NoError(t, repo.SaveJob(context.Background(), job, result))
	return job
}

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReranker(t *testing.T) {
	repo := setupTestRepo(t)
	embedder := mock.NewMockEmbedder()

	t.Run("requires repository", func(t *testing.T) {
		_, err := NewReranker(nil, embedder, nil, nil)
		assert.ErrorIs(t, err, ErrRepositoryRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewReranker(repo, nil, nil, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects zero retries", func(t *testing.T) {
		_, err := NewReranker(repo, embedder, &Config{BatchSize: 1}, nil)
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		r, err := NewReranker(repo, embedder, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), r.config)
	})
}

func TestReranker_Run(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedJob(t, repo, "job-1", 7)

	// The last uploaded document now matches the query best.
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0, 2}, nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			var n int
			_, err := fmt.Sscanf(text, "candidate %d text", &n)
			require.NoError(t, err)
			out[i] = []float32{3, float32(n)}
		}
		return out, nil
	}

	var buf bytes.Buffer
	r, err := NewReranker(repo, embedder, testConfig(), &buf)
	require.NoError(t, err)

	payload, err := r.Run(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, payload.Rankings, 7)
	assert.Equal(t, "doc6.pdf", payload.Rankings[0].Name)
	assert.Equal(t, "doc0.pdf", payload.Rankings[6].Name)
	for i, result := range payload.Rankings {
		assert.Equal(t, i+1, result.Rank)
		assert.NotNil(t, result.Fields, "parsed fields are kept")
		assert.NotNil(t, result.Detailed, "detailed scores are kept")
	}

	// Seven documents in batches of three, plus the query.
	assert.Equal(t, 4, embedder.CallCount())
	batches := embedder.Batches()
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)

	candidates, err := repo.GetCandidates(ctx, "job-1")
	require.NoError(t, err)
	for _, c := range candidates {
		var magnitude float64
		for _, v := range c.Vector {
			magnitude += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-5, "stored vectors are normalized")
	}

	output := buf.String()
	assert.Contains(t, output, "7/7")
	assert.Contains(t, output, "Rerank complete. Ranked 7 of 7 documents")
}

func TestReranker_LeavesMismatchedUnranked(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedJob(t, repo, "job-1", 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if text == "candidate 1 text" {
				out[i] = []float32{1, 0}
				continue
			}
			out[i] = []float32{1, 1, 0}
		}
		return out, nil
	}

	r, err := NewReranker(repo, embedder, testConfig(), nil)
	require.NoError(t, err)

	payload, err := r.Run(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, payload.Rankings, 2)
	assert.Equal(t, 2, payload.Summary.Ranked)
	for _, result := range payload.Rankings {
		assert.NotEqual(t, "doc1.pdf", result.Name)
	}
}

func TestReranker_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown job", func(t *testing.T) {
		r, err := NewReranker(setupTestRepo(t), mock.NewMockEmbedder(), testConfig(), nil)
		require.NoError(t, err)

		_, err = r.Run(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("job without candidates", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedJob(t, repo, "empty", 0)
		r, err := NewReranker(repo, mock.NewMockEmbedder(), testConfig(), nil)
		require.NoError(t, err)

		_, err = r.Run(ctx, "empty")
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("embedding keeps failing", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedJob(t, repo, "job-1", 2)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("model not loaded")
		}
		r, err := NewReranker(repo, embedder, testConfig(), nil)
		require.NoError(t, err)

		_, err = r.Run(ctx, "job-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
		assert.Equal(t, 3, embedder.CallCount(), "should retry up to MaxRetries")

		// Nothing was written.
		payload, err := repo.GetResults(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, "doc0.pdf", payload.Rankings[0].Name)
	})

	t.Run("embedding count mismatch", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedJob(t, repo, "job-1", 2)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		}
		r, err := NewReranker(repo, embedder, testConfig(), nil)
		require.NoError(t, err)

		_, err = r.Run(ctx, "job-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2, got 1")
	})

	t.Run("context canceled", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedJob(t, repo, "job-1", 2)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		r, err := NewReranker(repo, mock.NewMockEmbedder(), testConfig(), nil)
		require.NoError(t, err)

		_, err = r.Run(canceled, "job-1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
