package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/poiesic/rankit/core"
)

// Rank orders candidates by cosine similarity to query.
//
// Every candidate must carry a vector with the same dimension as query; a
// violation returns an error rather than silently dropping the candidate.
// The returned slice has one entry per candidate, ranks 1..len(candidates).
// Candidates are not modified.
func Rank(candidates []*core.Candidate, query []float32) ([]core.RankedResult, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		if c == nil || len(c.Vector) == 0 {
			return nil, fmt.Errorf("%w: position %d", ErrMissingEmbedding, i)
		}
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("%w: candidate %q has %d, query has %d",
				ErrDimensionMismatch, c.Name, len(c.Vector), len(query))
		}
		sim := CosineSimilarity(c.Vector, query)
		if math.IsNaN(sim) {
			return nil, fmt.Errorf("%w: candidate %q", ErrInvalidScore, c.Name)
		}
		scores[i] = sim
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps upload order for exactly equal scores.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	results := make([]core.RankedResult, len(order))
	for pos, idx := range order {
		c := candidates[idx]
		results[pos] = core.RankedResult{
			CandidateID: c.ID,
			Name:        c.Name,
			Path:        c.Path,
			Score:       scores[idx],
			Rank:        pos + 1,
			Fields:      c.Fields,
		}
	}
	return results, nil
}
