// Package status provides the in-process store of job status records.
//
// The Store is the single source of truth for progress polling while a job is
// in flight. Each job owns its own key; the pipeline running a job is the only
// writer for that key, while any number of pollers may read concurrently.
//
// Records in a terminal state (completed or failed) are absorbing: later
// writes for the same key are ignored until the record is removed.
//
// The store has no durability. A process restart loses all in-flight status;
// persisted job results are the durable record.
package status
