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

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxDocuments is the largest batch accepted in a single submission.
	MaxDocuments = 10

	// MinQueryLength is the minimum number of characters in the trimmed query text.
	MinQueryLength = 10
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSubmission validates a Submission according to domain rules.
//
// Validation rules:
//   - Between 1 and MaxDocuments documents
//   - Every document has a path
//   - Query text is at least MinQueryLength characters after trimming
//
// NOT validated:
//   - JobID (empty means the caller wants one generated)
//   - Whether the documents exist on disk (extraction handles that per document)
func ValidateSubmission(sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("%w: submission is nil", ErrInvalidSubmission)
	}

	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, translateValidationError(verrs[0]))
	}

	if len(strings.TrimSpace(sub.Query)) < MinQueryLength {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrQueryTooShort)
	}

	return nil
}

// translateValidationError maps a struct tag failure onto a domain error.
func translateValidationError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Documents":
		if fe.Tag() == "max" {
			return fmt.Errorf("%w: maximum %d documents allowed", ErrTooManyDocuments, MaxDocuments)
		}
		return ErrNoDocuments
	case "Path":
		return ErrEmptyDocumentPath
	case "Query":
		return ErrQueryTooShort
	}
	return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
}
