package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"unicode"

	"github.com/poiesic/rankit/ai"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/ranking"
)

// extractStage reads every document and keeps those with enough text, in
// upload order. It fails only when no document survives.
func (p *Pipeline) extractStage(ctx context.Context, job *core.Job, tr *tracker, logger *slog.Logger) ([]*core.Candidate, error) {
	tr.step(extractStart, "Extracting text from documents...")

	total := len(job.Documents)
	candidates := make([]*core.Candidate, 0, total)
	seen := make(map[core.ID]struct{}, total)
	for i, doc := range job.Documents {
		text, err := p.extractor.Extract(ctx, doc.Path)
		switch {
		case err != nil:
			logger.Warn("dropping document: extraction failed", "path", doc.Path, "err", err)
		case nonSpaceLen(text) < p.minTextLength:
			logger.Warn("dropping document: minimal or no text extracted", "path", doc.Path)
		default:
			id := core.CandidateID(job.ID, doc.Path)
			if _, dup := seen[id]; dup {
				// Same path submitted twice; keep both entries distinct.
				id = core.CandidateID(job.ID, fmt.Sprintf("%s\x00%d", doc.Path, i))
			}
			seen[id] = struct{}{}
			candidates = append(candidates, &core.Candidate{
				ID:   id,
				Path: doc.Path,
				Name: displayName(doc),
				Text: text,
			})
		}
		tr.band(extractStart, parseStart, i+1, total,
			fmt.Sprintf("Extracted text from %d/%d documents", len(candidates), total))
	}

	if len(candidates) == 0 {
		return nil, ErrNoTextExtracted
	}
	logger.Info("extraction finished", "extracted", len(candidates), "documents", total)
	return candidates, nil
}

// parseStage attaches parsed fields to every candidate. A parser failure,
// including a panic, becomes an error marker on that candidate.
func (p *Pipeline) parseStage(ctx context.Context, candidates []*core.Candidate, tr *tracker, logger *slog.Logger) {
	tr.step(parseStart, "Parsing document data...")

	for i, c := range candidates {
		fields := p.parseOne(ctx, c, logger)
		c.Fields = &fields
		tr.band(parseStart, embedStart, i+1, len(candidates),
			fmt.Sprintf("Parsed %d/%d documents", i+1, len(candidates)))
	}
}

func (p *Pipeline) parseOne(ctx context.Context, c *core.Candidate, logger *slog.Logger) (fields core.CandidateFields) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("field parser panicked", "path", c.Path, "panic", r)
			fields = core.CandidateFields{Error: fmt.Sprintf("parse failed: %v", r)}
		}
	}()

	fields = p.parser.Parse(ctx, c.Text)
	if fields.Failed() {
		logger.Warn("field parsing failed, ranking on raw text", "path", c.Path, "err", fields.Error)
	}
	return fields
}

// embedStage embeds every candidate's text with the query appended last, in
// one call. Candidates left without a usable vector are not ranked.
func (p *Pipeline) embedStage(ctx context.Context, job *core.Job, candidates []*core.Candidate, tr *tracker, logger *slog.Logger) ([]float32, error) {
	tr.step(embedStart, "Generating embeddings...")

	texts := make([]string, 0, len(candidates)+1)
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	texts = append(texts, job.Query)

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = p.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingCount, len(texts), len(vectors))
		}
		return err
	}, p.embedAttempts, p.embedDelay)
	if err != nil {
		logger.Error("error generating embeddings", "err", err)
		return nil, &stageError{sentinel: ErrEmbeddingFailed, cause: err}
	}

	query := vectors[len(vectors)-1]
	if len(query) == 0 {
		return nil, &stageError{sentinel: ErrEmbeddingFailed, cause: fmt.Errorf("empty query embedding")}
	}
	for i, c := range candidates {
		c.Vector = vectors[i]
	}

	tr.step(rankStart, "Generated embeddings for all documents")
	return query, nil
}

// rankStage ranks the candidates holding a vector of the query's dimension.
// It returns the rankings and the ranked candidates, in upload order, with
// their score and rank set.
func (p *Pipeline) rankStage(job *core.Job, candidates []*core.Candidate, query []float32, tr *tracker, logger *slog.Logger) ([]core.RankedResult, []*core.Candidate, error) {
	tr.step(rankStart, "Ranking documents...")

	valid := make([]*core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			logger.Warn("dropping document: unusable embedding",
				"path", c.Path, "dimensions", len(c.Vector), "expected", len(query))
			continue
		}
		valid = append(valid, c)
	}

	rankings, err := ranking.Rank(valid, query)
	if err != nil {
		logger.Error("error ranking documents", "err", err)
		return nil, nil, &stageError{sentinel: ErrRankingFailed, cause: err}
	}

	byID := make(map[core.ID]*core.Candidate, len(valid))
	for _, c := range valid {
		byID[c.ID] = c
	}
	for i := range rankings {
		r := &rankings[i]
		c := byID[r.CandidateID]
		c.Score = r.Score
		c.Rank = r.Rank
		if p.detailed {
			score := ranking.DetailedScores(c.Fields, job.Query)
			r.Detailed = &score
		}
	}

	tr.step(persistStart, "Completed ranking documents")
	return rankings, valid, nil
}

// persistStage stores the completed job. A failure is logged and otherwise
// ignored: the in-memory result stays authoritative.
func (p *Pipeline) persistStage(ctx context.Context, job *core.Job, result *core.ResultPayload, message string, tr *tracker, logger *slog.Logger) {
	if p.repository == nil {
		logger.Debug("no repository configured, skipping persistence")
		return
	}
	tr.step(persistStart+3, "Storing results...")

	// Persist the job as it will look once completed.
	snapshot := *job
	snapshot.State = core.JobStateCompleted
	snapshot.Progress = fullProgress
	snapshot.Message = message

	if err := p.repository.SaveJob(ctx, &snapshot, result); err != nil {
		logger.Error("error storing results, continuing without persistence", "err", err)
		return
	}
	logger.Debug("stored results")
}

func countParsed(candidates []*core.Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Fields != nil && !c.Fields.Failed() {
			n++
		}
	}
	return n
}

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func displayName(doc core.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return filepath.Base(doc.Path)
}
