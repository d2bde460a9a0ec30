package pipeline

import (
	"context"

	"github.com/poiesic/rankit/core"
)

// TextExtractor returns the plain text of a document.
// An error drops the document from its job; it never fails the job.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// FieldParser pulls structured fields out of document text.
// Problems are reported through CandidateFields.Error, not a returned error.
type FieldParser interface {
	Parse(ctx context.Context, text string) core.CandidateFields
}

// CleanupFunc releases external artifacts of a job, such as staged uploads.
type CleanupFunc func(ctx context.Context, jobID string) error
