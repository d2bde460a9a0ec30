package core

import (
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for candidates.
// It is derived from content so that re-submitting the same document in the
// same job yields the same identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// CandidateID returns the identifier of the candidate built from path within job.
func CandidateID(jobID, path string) ID {
	return IDFromContent(jobID + "\x00" + path)
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	// JobStateUploading is the state of a job that was accepted but not yet started.
	JobStateUploading JobState = "uploading"
	// JobStateProcessing is the state of a job whose pipeline is running.
	JobStateProcessing JobState = "processing"
	// JobStateCompleted is the terminal state of a successful job.
	JobStateCompleted JobState = "completed"
	// JobStateFailed is the terminal state of a job that could not produce results.
	JobStateFailed JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Document references one input document of a job.
type Document struct {
	Path string `validate:"required"`
	Name string // Display name; defaults to the base name of Path
}

// CandidateFields holds the structured fields parsed out of a document.
// A non-empty Error marks a document whose parsing failed; the candidate is
// still ranked on its raw text.
type CandidateFields struct {
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Education      []string `json:"education,omitempty"`
	Experience     []string `json:"experience,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Failed reports whether the fields carry a parse error marker.
func (f *CandidateFields) Failed() bool {
	return f != nil && f.Error != ""
}

// Candidate is one document's working record as it flows through the pipeline.
type Candidate struct {
	ID     ID
	Path   string
	Name   string
	Text   string           // Extracted raw text (empty until extraction succeeds)
	Fields *CandidateFields // Parsed fields (nil until parsing runs)
	Vector []float32        // Embedding (nil until embedding succeeds)
	Score  float64          // Cosine similarity to the query (valid when Rank > 0)
	Rank   int              // 1-based rank; 0 means not ranked
}

// DetailedScore is the optional heuristic breakdown of a candidate's fit.
// It never affects ranking order.
type DetailedScore struct {
	Skills     float64 `json:"skill_score"`
	Experience float64 `json:"experience_score"`
	Education  float64 `json:"education_score"`
	Combined   float64 `json:"combined_score"`
}

// RankedResult is the immutable projection of a candidate after ranking.
type RankedResult struct {
	CandidateID ID               `json:"candidate_id"`
	Name        string           `json:"name"`
	Path        string           `json:"path"`
	Score       float64          `json:"similarity_score"`
	Rank        int              `json:"rank"`
	Fields      *CandidateFields `json:"parsed_data,omitempty"`
	Detailed    *DetailedScore   `json:"detailed_scores,omitempty"`
}

// ProcessingSummary counts candidates surviving each stage.
type ProcessingSummary struct {
	Extracted int `json:"extracted"`
	Parsed    int `json:"parsed"`
	Ranked    int `json:"ranked"`
}

// ResultPayload is attached to the status record of a completed job.
type ResultPayload struct {
	JobID              string            `json:"job_id"`
	TotalDocuments     int               `json:"total_documents"`
	ProcessedDocuments int               `json:"processed_documents"`
	Rankings           []RankedResult    `json:"rankings"`
	Summary            ProcessingSummary `json:"processing_summary"`
}

// TopCandidates returns at most n leading results.
func (p *ResultPayload) TopCandidates(n int) []RankedResult {
	if p == nil || n <= 0 {
		return nil
	}
	if n > len(p.Rankings) {
		n = len(p.Rankings)
	}
	return p.Rankings[:n]
}

// Clone returns a deep copy of p. Rankings, parsed fields and detailed scores
// are copied, so the clone shares no memory with p.
func (p *ResultPayload) Clone() *ResultPayload {
	if p == nil {
		return nil
	}
	out := *p
	if p.Rankings != nil {
		out.Rankings = make([]RankedResult, len(p.Rankings))
		for i, r := range p.Rankings {
			out.Rankings[i] = r.Clone()
		}
	}
	return &out
}

// Clone returns a copy of r that shares no memory with it.
func (r RankedResult) Clone() RankedResult {
	if r.Fields != nil {
		fields := r.Fields.Clone()
		r.Fields = &fields
	}
	if r.Detailed != nil {
		detailed := *r.Detailed
		r.Detailed = &detailed
	}
	return r
}

// Clone returns a deep copy of f.
func (f *CandidateFields) Clone() CandidateFields {
	out := *f
	out.Skills = slices.Clone(f.Skills)
	out.Education = slices.Clone(f.Education)
	out.Experience = slices.Clone(f.Experience)
	out.Certifications = slices.Clone(f.Certifications)
	return out
}

// StatusRecord is the snapshot of a job exposed to pollers.
type StatusRecord struct {
	JobID     string         `json:"job_id"`
	State     JobState       `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Result    *ResultPayload `json:"data,omitempty"`
}

// Job is the envelope threaded through every pipeline stage.
type Job struct {
	ID                 string
	Query              string
	Documents          []Document
	State              JobState
	Progress           int
	Message            string
	ProcessedDocuments int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Candidates         []*Candidate // Surviving candidates in upload order
}

// Submission is a request to rank a batch of documents against a query.
type Submission struct {
	JobID     string
	Documents []Document `validate:"min=1,max=10,dive"`
	Query     string     `validate:"required"`
}
