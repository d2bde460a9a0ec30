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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidSubmission indicates a Submission failed validation.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrNoDocuments indicates a submission without documents.
	ErrNoDocuments = errors.New("at least one document is required")

	// ErrTooManyDocuments indicates a submission over the document limit.
	ErrTooManyDocuments = errors.New("too many documents")

	// ErrQueryTooShort indicates the query text is shorter than the minimum length.
	ErrQueryTooShort = errors.New("query text is too short")

	// ErrEmptyDocumentPath indicates a document without a path.
	ErrEmptyDocumentPath = errors.New("document path cannot be empty")
)
