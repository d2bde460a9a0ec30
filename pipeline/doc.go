// Package pipeline runs ranking jobs end to end.
//
// A job moves through five stages, each reporting progress within its band:
//
//	extraction   0-20   per document; unreadable or near-empty documents are dropped
//	parsing     20-40   per candidate; failures become an error marker, never a drop
//	embedding   40-80   one batched call, the query text appended last
//	ranking     80-95   cosine similarity against the query vector
//	persistence 95-100  best effort; a failure is logged and the job still completes
//
// Status is published to a status.Store after every step. Progress never
// decreases within a job, and once a job is completed or failed its record
// is never written again.
//
// Jobs run on an ants worker pool. Submit returns as soon as the job has been
// handed to a worker; callers poll Status and fetch Results once the job
// has completed.
package pipeline
