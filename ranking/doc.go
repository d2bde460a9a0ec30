// Package ranking turns embedding vectors into an ordered, ranked result set.
//
// Rank is a pure function: it computes the cosine similarity between every
// candidate embedding and the query embedding, sorts by similarity descending
// and assigns contiguous 1-based ranks. Exact ties keep their input order, so
// the candidate uploaded first ranks higher.
//
// DetailedScores is an optional heuristic breakdown (skills, experience,
// education) computed from parsed fields. It is reported alongside the
// ranking and never changes the order.
package ranking
