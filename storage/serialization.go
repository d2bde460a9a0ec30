// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/rankit/core"
)

// codecVersion prefixes every encoded value.
const codecVersion = 1

// JobRecord is the persisted form of a job. Candidates are stored as
// separate CandidateRecords and are not encoded here.
type JobRecord struct {
	Job     core.Job
	Summary core.ProcessingSummary
}

// CandidateRecord is the persisted form of one candidate of a job.
type CandidateRecord struct {
	// Ordinal is the candidate's position in upload order.
	Ordinal   int
	Candidate core.Candidate
	Detailed  *core.DetailedScore
}

// serializer is the subset of the mus-go serializer contract used here.
type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

type writer struct {
	bs []byte
}

func put[T any](w *writer, s serializer[T], v T) {
	start := len(w.bs)
	w.bs = append(w.bs, make([]byte, s.Size(v))...)
	s.Marshal(v, w.bs[start:])
}

type reader struct {
	bs  []byte
	err error
}

func get[T any](r *reader, s serializer[T]) (v T) {
	if r.err != nil {
		return v
	}
	v, n, err := s.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return v
	}
	r.bs = r.bs[n:]
	return v
}

func (r *reader) length() int {
	n := get(r, varint.Int)
	if r.err == nil && (n < 0 || n > len(r.bs)) {
		r.err = ErrTruncatedData
	}
	return n
}

func putStrings(w *writer, ss []string) {
	put(w, varint.Int, len(ss))
	for _, s := range ss {
		put(w, ord.String, s)
	}
}

func getStrings(r *reader) []string {
	n := r.length()
	if r.err != nil || n == 0 {
		return nil
	}
	ss := make([]string, n)
	for i := range ss {
		ss[i] = get(r, ord.String)
	}
	return ss
}

func putVector(w *writer, v []float32) {
	put(w, varint.Int, len(v))
	for _, f := range v {
		put(w, raw.Float32, f)
	}
}

func getVector(r *reader) []float32 {
	n := r.length()
	if r.err != nil || n == 0 {
		return nil
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = get(r, raw.Float32)
	}
	return v
}

// Times are stored as Unix microseconds in UTC.
func putTime(w *writer, t time.Time) {
	put(w, varint.Int64, t.UnixMicro())
}

func getTime(r *reader) time.Time {
	return time.UnixMicro(get(r, varint.Int64)).UTC()
}

func putFields(w *writer, f *core.CandidateFields) {
	put(w, ord.Bool, f != nil)
	if f == nil {
		return
	}
	put(w, ord.String, f.Name)
	put(w, ord.String, f.Email)
	put(w, ord.String, f.Phone)
	putStrings(w, f.Skills)
	putStrings(w, f.Education)
	putStrings(w, f.Experience)
	putStrings(w, f.Certifications)
	put(w, ord.String, f.Summary)
	put(w, ord.String, f.Error)
}

func getFields(r *reader) *core.CandidateFields {
	if !get(r, ord.Bool) {
		return nil
	}
	return &core.CandidateFields{
		Name:           get(r, ord.String),
		Email:          get(r, ord.String),
		Phone:          get(r, ord.String),
		Skills:         getStrings(r),
		Education:      getStrings(r),
		Experience:     getStrings(r),
		Certifications: getStrings(r),
		Summary:        get(r, ord.String),
		Error:          get(r, ord.String),
	}
}

func putDetailed(w *writer, d *core.DetailedScore) {
	put(w, ord.Bool, d != nil)
	if d == nil {
		return
	}
	put(w, raw.Float64, d.Skills)
	put(w, raw.Float64, d.Experience)
	put(w, raw.Float64, d.Education)
	put(w, raw.Float64, d.Combined)
}

func getDetailed(r *reader) *core.DetailedScore {
	if !get(r, ord.Bool) {
		return nil
	}
	return &core.DetailedScore{
		Skills:     get(r, raw.Float64),
		Experience: get(r, raw.Float64),
		Education:  get(r, raw.Float64),
		Combined:   get(r, raw.Float64),
	}
}

func checkVersion(r *reader) {
	if v := get(r, varint.Int); r.err == nil && v != codecVersion {
		r.err = fmt.Errorf("unknown codec version %d", v)
	}
}

func decodeErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, err)
}

// MarshalJobRecord serializes a JobRecord to bytes.
func MarshalJobRecord(rec *JobRecord) []byte {
	w := &writer{}
	job := &rec.Job
	put(w, varint.Int, codecVersion)
	put(w, ord.String, job.ID)
	put(w, ord.String, job.Query)
	put(w, varint.Int, len(job.Documents))
	for _, d := range job.Documents {
		put(w, ord.String, d.Path)
		put(w, ord.String, d.Name)
	}
	put(w, ord.String, string(job.State))
	put(w, varint.Int, job.Progress)
	put(w, ord.String, job.Message)
	put(w, varint.Int, job.ProcessedDocuments)
	putTime(w, job.CreatedAt)
	putTime(w, job.UpdatedAt)
	put(w, varint.Int, rec.Summary.Extracted)
	put(w, varint.Int, rec.Summary.Parsed)
	put(w, varint.Int, rec.Summary.Ranked)
	return w.bs
}

// UnmarshalJobRecord deserializes a JobRecord from bytes.
func UnmarshalJobRecord(data []byte) (*JobRecord, error) {
	r := &reader{bs: data}
	checkVersion(r)

	rec := &JobRecord{}
	job := &rec.Job
	job.ID = get(r, ord.String)
	job.Query = get(r, ord.String)
	if n := r.length(); r.err == nil && n > 0 {
		job.Documents = make([]core.Document, n)
		for i := range job.Documents {
			job.Documents[i].Path = get(r, ord.String)
			job.Documents[i].Name = get(r, ord.String)
		}
	}
	job.State = core.JobState(get(r, ord.String))
	job.Progress = get(r, varint.Int)
	job.Message = get(r, ord.String)
	job.ProcessedDocuments = get(r, varint.Int)
	job.CreatedAt = getTime(r)
	job.UpdatedAt = getTime(r)
	rec.Summary.Extracted = get(r, varint.Int)
	rec.Summary.Parsed = get(r, varint.Int)
	rec.Summary.Ranked = get(r, varint.Int)

	if r.err != nil {
		return nil, decodeErr("job", r.err)
	}
	return rec, nil
}

// MarshalCandidateRecord serializes a CandidateRecord to bytes.
func MarshalCandidateRecord(rec *CandidateRecord) []byte {
	w := &writer{}
	c := &rec.Candidate
	put(w, varint.Int, codecVersion)
	put(w, varint.Int, rec.Ordinal)
	put(w, varint.Uint64, uint64(c.ID))
	put(w, ord.String, c.Path)
	put(w, ord.String, c.Name)
	put(w, ord.String, c.Text)
	putFields(w, c.Fields)
	putVector(w, c.Vector)
	put(w, raw.Float64, c.Score)
	put(w, varint.Int, c.Rank)
	putDetailed(w, rec.Detailed)
	return w.bs
}

// UnmarshalCandidateRecord deserializes a CandidateRecord from bytes.
func UnmarshalCandidateRecord(data []byte) (*CandidateRecord, error) {
	r := &reader{bs: data}
	checkVersion(r)

	rec := &CandidateRecord{}
	c := &rec.Candidate
	rec.Ordinal = get(r, varint.Int)
	c.ID = core.ID(get(r, varint.Uint64))
	c.Path = get(r, ord.String)
	c.Name = get(r, ord.String)
	c.Text = get(r, ord.String)
	c.Fields = getFields(r)
	c.Vector = getVector(r)
	c.Score = get(r, raw.Float64)
	c.Rank = get(r, varint.Int)
	rec.Detailed = getDetailed(r)

	if r.err != nil {
		return nil, decodeErr("candidate", r.err)
	}
	return rec, nil
}
