package rankit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/rankit/ai/mock"
	"github.com/poiesic/rankit/config"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/pipeline"
	"github.com/poiesic/rankit/rerank"
	"github.com/poiesic/rankit/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuery = "Senior Go engineer with Kubernetes experience"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		InMemory:  true,
		UploadDir: filepath.Join(t.TempDir(), "uploads"),
		LogLevel:  "debug",
		Embedding: config.EmbeddingConfig{Host: "http://localhost:11434", Model: "test-model"},
		Pipeline: config.PipelineConfig{
			PoolSize:      2,
			EmbedRetries:  1,
			RetryDelay:    time.Millisecond,
			MinTextLength: 20,
		},
		Extract: config.ExtractConfig{Pdftotext: "pdftotext"},
	}
}

func newTestService(t *testing.T) (*Service, *mock.MockProvider, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	provider := mock.NewMockProvider()
	svc, err := NewService(WithConfig(cfg), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, provider, cfg
}

// writeDocuments writes one text document per body and returns their paths.
func writeDocuments(t *testing.T, bodies ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(bodies))
	for i, body := range bodies {
		paths[i] = filepath.Join(dir, fmt.Sprintf("resume-%d.txt", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(body), 0o644))
	}
	return paths
}

func waitForJob(t *testing.T, svc *Service, jobID string) core.StatusRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := svc.WaitForJob(ctx, jobID, 5*time.Millisecond, nil)
	require.NoError(t, err)
	return record
}

func TestNewService(t *testing.T) {
	svc, provider, _ := newTestService(t)

	assert.NotNil(t, svc.backend)
	assert.NotNil(t, svc.repo)
	assert.NotNil(t, svc.pipeline)
	assert.False(t, provider.Closed())
}

func TestService_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	svc, err := NewService(WithConfig(testConfig(t)), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	assert.True(t, provider.Closed())
	assert.True(t, svc.backend.IsClosed())
}

func TestService_RankEndToEnd(t *testing.T) {
	svc, _, cfg := newTestService(t)
	ctx := context.Background()

	paths := writeDocuments(t,
		"Jane Doe\njane@example.com\nSenior Go engineer, 8 years with Kubernetes and PostgreSQL.",
		"John Roe\njohn@example.com\nPastry chef with a love for laminated doughs and sourdough.",
	)

	var updates []core.StatusRecord
	jobID, err := svc.Rank(ctx, "", paths, testQuery)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	record, err := svc.WaitForJob(ctx, jobID, 5*time.Millisecond, func(r core.StatusRecord) {
		updates = append(updates, r)
	})
	require.NoError(t, err)
	require.Equal(t, core.JobStateCompleted, record.State, record.Message)
	assert.Equal(t, "Successfully processed 2 documents", record.Message)
	assert.NotEmpty(t, updates)

	results, err := svc.Results(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	names := []string{results[0].Name, results[1].Name}
	assert.ElementsMatch(t, []string{"resume-0.txt", "resume-1.txt"}, names)
	for _, r := range results {
		require.NotNil(t, r.Fields)
		assert.True(t, strings.HasPrefix(r.Path, filepath.Join(cfg.UploadDir, jobID)), "documents are staged")
	}
	assert.Equal(t, "jane@example.com", findByName(results, "resume-0.txt").Fields.Email)

	jobs, err := svc.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)

	summary, err := svc.Summary(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Summary.Ranked)
}

func findByName(results []core.RankedResult, name string) core.RankedResult {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	return core.RankedResult{}
}

func TestService_RankRejects(t *testing.T) {
	svc, provider, cfg := newTestService(t)
	ctx := context.Background()
	paths := writeDocuments(t, "Jane Doe\nSenior Go engineer with years of Kubernetes.")

	t.Run("short query", func(t *testing.T) {
		_, err := svc.Rank(ctx, "job-short", paths, "Go")
		assert.ErrorIs(t, err, core.ErrInvalidSubmission)
	})

	t.Run("missing file leaves nothing staged", func(t *testing.T) {
		missing := append([]string{}, paths[0], filepath.Join(t.TempDir(), "missing.txt"))
		_, err := svc.Rank(ctx, "job-missing", missing, testQuery)
		require.ErrorIs(t, err, os.ErrNotExist)

		_, statErr := os.Stat(filepath.Join(cfg.UploadDir, "job-missing"))
		assert.ErrorIs(t, statErr, os.ErrNotExist)
		_, err = svc.Status("job-missing")
		assert.ErrorIs(t, err, status.ErrJobNotFound)
	})

	t.Run("duplicate job id", func(t *testing.T) {
		_, err := svc.Rank(ctx, "job-dup", paths, testQuery)
		require.NoError(t, err)
		waitForJob(t, svc, "job-dup")

		_, err = svc.Rank(ctx, "job-dup", paths, testQuery)
		assert.ErrorIs(t, err, pipeline.ErrJobExists)
	})

	t.Run("job id held only by the repository", func(t *testing.T) {
		_, err := svc.Rank(ctx, "job-persisted", paths, testQuery)
		require.NoError(t, err)
		waitForJob(t, svc, "job-persisted")
		require.True(t, svc.store.Remove("job-persisted"))

		_, err = svc.Rank(ctx, "job-persisted", paths, testQuery)
		require.ErrorIs(t, err, pipeline.ErrJobExists)

		candidates, err := svc.repo.GetCandidates(ctx, "job-persisted")
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
		_, err = svc.Status("job-persisted")
		assert.ErrorIs(t, err, status.ErrJobNotFound)
	})

	assert.LessOrEqual(t, provider.GetMockEmbedder().CallCount(), 2)
}

func TestService_Delete(t *testing.T) {
	svc, _, cfg := newTestService(t)
	ctx := context.Background()
	paths := writeDocuments(t, "Jane Doe\nSenior Go engineer with years of Kubernetes.")

	jobID, err := svc.Rank(ctx, "job-1", paths, testQuery)
	require.NoError(t, err)
	waitForJob(t, svc, jobID)

	require.NoError(t, svc.Delete(ctx, jobID))

	_, err = svc.Status(jobID)
	assert.ErrorIs(t, err, status.ErrJobNotFound)
	_, err = svc.Results(ctx, jobID)
	assert.ErrorIs(t, err, status.ErrJobNotFound)
	_, err = os.Stat(filepath.Join(cfg.UploadDir, jobID))
	assert.ErrorIs(t, err, os.ErrNotExist)

	jobs, err := svc.Jobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestService_Rerank(t *testing.T) {
	svc, provider, _ := newTestService(t)
	ctx := context.Background()
	paths := writeDocuments(t,
		"Jane Doe\nSenior Go engineer with years of Kubernetes.",
		"John Roe\nPastry chef with a love for sourdough bread.",
	)

	jobID, err := svc.Rank(ctx, "job-1", paths, testQuery)
	require.NoError(t, err)
	require.Equal(t, core.JobStateCompleted, waitForJob(t, svc, jobID).State)

	// A new model that prefers the second document.
	embedder := provider.GetMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0, 1}, nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if strings.HasPrefix(text, "John") {
				out[i] = []float32{0.1, 1}
			} else {
				out[i] = []float32{1, 0.1}
			}
		}
		return out, nil
	}

	var progress bytes.Buffer
	payload, err := svc.Rerank(ctx, jobID, &rerank.Config{BatchSize: 1, ReportInterval: 1, MaxRetries: 1}, &progress)
	require.NoError(t, err)
	require.Len(t, payload.Rankings, 2)
	assert.Equal(t, "resume-1.txt", payload.Rankings[0].Name)
	assert.Contains(t, progress.String(), "2/2")

	results, err := svc.Results(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "resume-1.txt", results[0].Name, "results reflect the rerank")

	record, err := svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStateCompleted, record.State)
	assert.Equal(t, 100, record.Progress)
	assert.Equal(t, "resume-1.txt", record.Result.Rankings[0].Name)
}
