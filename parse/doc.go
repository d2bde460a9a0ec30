// Package parse extracts structured candidate fields from raw document text.
//
// The Parser is rule based: regular expressions for contact details, keyword
// lists for skills and certifications, and line heuristics for the candidate
// name and summary. Parsing never fails; any problem is reported through the
// Error field of the returned core.CandidateFields.
package parse
