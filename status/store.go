package status

import (
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/rankit/core"
)

// Store maps job identifiers to their current status record.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]core.StatusRecord
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty status store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]core.StatusRecord),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "status-store")
	return s
}

// Create adds a status record for jobID only if none exists. It reports
// whether the record was created.
func (s *Store) Create(jobID string, state core.JobState, progress int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[jobID]; ok {
		return false
	}
	s.records[jobID] = core.StatusRecord{
		JobID:     jobID,
		State:     state,
		Progress:  progress,
		Message:   message,
		Timestamp: s.now(),
	}
	return true
}

// Set replaces the status record for jobID, creating it if needed, and stamps
// it with the current time. Writes to a record that is already terminal are
// ignored; Set reports whether the write was applied. The store keeps its own
// copy of result.
func (s *Store) Set(jobID string, state core.JobState, progress int, message string, result *core.ResultPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[jobID]; ok && existing.State.IsTerminal() {
		s.logger.Debug("ignoring write to terminal record",
			"job", jobID, "state", existing.State, "attempted", state)
		return false
	}

	s.records[jobID] = core.StatusRecord{
		JobID:     jobID,
		State:     state,
		Progress:  progress,
		Message:   message,
		Timestamp: s.now(),
		Result:    result.Clone(),
	}
	return true
}

// ReplaceResult swaps the result of a completed record in place, keeping its
// state, progress and message. It reports whether a completed record for
// jobID existed.
func (s *Store) ReplaceResult(jobID string, result *core.ResultPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jobID]
	if !ok || record.State != core.JobStateCompleted {
		return false
	}
	record.Result = result.Clone()
	record.Timestamp = s.now()
	s.records[jobID] = record
	return true
}

// Get returns a copy of the status record for jobID.
func (s *Store) Get(jobID string) (core.StatusRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jobID]
	record.Result = record.Result.Clone()
	return record, ok
}

// Remove deletes the status record for jobID and reports whether one existed.
func (s *Store) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[jobID]; !ok {
		return false
	}
	delete(s.records, jobID)
	return true
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
