// Package rerank re-embeds and re-ranks persisted jobs.
//
// A job stores the extracted text of every candidate, so switching to a new
// embedding model does not require the original documents. The Reranker
// embeds the stored texts in batches with retry and backoff, embeds the job's
// query with the same model, ranks again and writes the new vectors, scores
// and ranks back to the repository. Parsed fields and detailed scores are
// left as they were.
package rerank
