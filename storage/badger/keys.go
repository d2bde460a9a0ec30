package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	jobRecordPrefix       = "job:"
	candidateRecordPrefix = "cand:"
)

// makeJobKey generates a key for a job record by ID.
// Format: prefix + jobID
func makeJobKey(jobID string) []byte {
	return []byte(jobRecordPrefix + jobID)
}

// makeCandidatePrefix generates the common prefix of all candidate keys of a job.
// Format: prefix + jobID + 0x00. The NUL terminator keeps "a" from matching "ab".
func makeCandidatePrefix(jobID string) []byte {
	buf := make([]byte, 0, len(candidateRecordPrefix)+len(jobID)+1)
	buf = append(buf, candidateRecordPrefix...)
	buf = append(buf, jobID...)
	return append(buf, 0)
}

// makeCandidateKey generates a key for one candidate of a job.
// Format: prefix + jobID + 0x00 + ordinal
func makeCandidateKey(jobID string, ordinal int) []byte {
	prefix := makeCandidatePrefix(jobID)
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	// Write in BigEndian order so iteration follows upload order
	binary.BigEndian.PutUint32(buf[offset:], uint32(ordinal))
	return buf
}
