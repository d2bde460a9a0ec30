package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &JobRepository{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close is a no-op; the backend is closed by its owner.
func (r *JobRepository) Close() error {
	return nil
}

// SaveJob stores a job and its candidates in one transaction.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.Job, result *core.ResultPayload) error {
	if job == nil || job.ID == "" || strings.ContainsRune(job.ID, 0) {
		return storage.ErrInvalidJob
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := &storage.JobRecord{Job: *job}
	rec.Job.Candidates = nil
	if rec.Job.UpdatedAt.IsZero() {
		rec.Job.UpdatedAt = r.now()
	}
	if rec.Job.CreatedAt.IsZero() {
		rec.Job.CreatedAt = rec.Job.UpdatedAt
	}

	detailed := make(map[core.ID]*core.DetailedScore)
	if result != nil {
		rec.Summary = result.Summary
		for _, ranked := range result.Rankings {
			if ranked.Detailed != nil {
				detailed[ranked.CandidateID] = ranked.Detailed
			}
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Replace any earlier version of the job
		if err := deleteCandidates(tx, job.ID); err != nil {
			return err
		}
		if err := tx.Set(makeJobKey(job.ID), storage.MarshalJobRecord(rec)); err != nil {
			return err
		}
		for i, c := range job.Candidates {
			if c == nil {
				continue
			}
			crec := &storage.CandidateRecord{
				Ordinal:   i,
				Candidate: *c,
				Detailed:  detailed[c.ID],
			}
			if err := tx.Set(makeCandidateKey(job.ID, i), storage.MarshalCandidateRecord(crec)); err != nil {
				return err
			}
		}
		return nil
	}, true)
}

// GetJob retrieves a job without its candidates.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		rec, err := readJobRecord(tx, jobID)
		if err != nil {
			return err
		}
		job = &rec.Job
		return nil
	}, false)
	return job, err
}

// GetCandidates retrieves a job's candidates in upload order.
func (r *JobRepository) GetCandidates(ctx context.Context, jobID string) ([]*core.Candidate, error) {
	var candidates []*core.Candidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readJobRecord(tx, jobID); err != nil {
			return err
		}
		return scanCandidates(tx, jobID, func(rec *storage.CandidateRecord) error {
			c := rec.Candidate
			candidates = append(candidates, &c)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// GetResults rebuilds the result payload of a persisted job.
func (r *JobRepository) GetResults(ctx context.Context, jobID string) (*core.ResultPayload, error) {
	var payload *core.ResultPayload
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		rec, err := readJobRecord(tx, jobID)
		if err != nil {
			return err
		}
		payload = &core.ResultPayload{
			JobID:              rec.Job.ID,
			TotalDocuments:     len(rec.Job.Documents),
			ProcessedDocuments: rec.Job.ProcessedDocuments,
			Summary:            rec.Summary,
			Rankings:           []core.RankedResult{},
		}
		return scanCandidates(tx, jobID, func(crec *storage.CandidateRecord) error {
			c := crec.Candidate
			if c.Rank <= 0 {
				return nil
			}
			payload.Rankings = append(payload.Rankings, core.RankedResult{
				CandidateID: c.ID,
				Name:        c.Name,
				Path:        c.Path,
				Score:       c.Score,
				Rank:        c.Rank,
				Fields:      c.Fields,
				Detailed:    crec.Detailed,
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(payload.Rankings, func(a, b core.RankedResult) int {
		return a.Rank - b.Rank
	})
	return payload, nil
}

// ListJobs returns all persisted jobs, most recently created first.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.Job, error) {
	var jobs []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec *storage.JobRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalJobRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			jobs = append(jobs, &rec.Job)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b *core.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return jobs, nil
}

// UpdateResults overwrites vectors, scores and ranks of existing candidates.
func (r *JobRepository) UpdateResults(ctx context.Context, jobID string, candidates []*core.Candidate) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		rec, err := readJobRecord(tx, jobID)
		if err != nil {
			return err
		}

		stored := make(map[core.ID]*storage.CandidateRecord)
		err = scanCandidates(tx, jobID, func(crec *storage.CandidateRecord) error {
			stored[crec.Candidate.ID] = crec
			return nil
		})
		if err != nil {
			return err
		}

		for _, c := range candidates {
			crec, ok := stored[c.ID]
			if !ok {
				return fmt.Errorf("%w: candidate %d of job %s", storage.ErrNotFound, c.ID, jobID)
			}
			crec.Candidate.Vector = c.Vector
			crec.Candidate.Score = c.Score
			crec.Candidate.Rank = c.Rank
			key := makeCandidateKey(jobID, crec.Ordinal)
			if err := tx.Set(key, storage.MarshalCandidateRecord(crec)); err != nil {
				return err
			}
		}

		ranked := 0
		for _, crec := range stored {
			if crec.Candidate.Rank > 0 {
				ranked++
			}
		}
		rec.Summary.Ranked = ranked
		rec.Job.ProcessedDocuments = ranked
		rec.Job.UpdatedAt = r.now()
		return tx.Set(makeJobKey(jobID), storage.MarshalJobRecord(rec))
	}, true)
}

// DeleteJob removes a job and all of its candidates.
func (r *JobRepository) DeleteJob(ctx context.Context, jobID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readJobRecord(tx, jobID); err != nil {
			return err
		}
		if err := deleteCandidates(tx, jobID); err != nil {
			return err
		}
		return tx.Delete(makeJobKey(jobID))
	}, true)
}

func readJobRecord(tx *badger.Txn, jobID string) (*storage.JobRecord, error) {
	item, err := tx.Get(makeJobKey(jobID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: job %s", storage.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}

	var rec *storage.JobRecord
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = storage.UnmarshalJobRecord(val)
		return err
	})
	return rec, err
}

func scanCandidates(tx *badger.Txn, jobID string, fn func(*storage.CandidateRecord) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeCandidatePrefix(jobID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var rec *storage.CandidateRecord
		err := iter.Item().Value(func(val []byte) error {
			var err error
			rec, err = storage.UnmarshalCandidateRecord(val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func deleteCandidates(tx *badger.Txn, jobID string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeCandidatePrefix(jobID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
