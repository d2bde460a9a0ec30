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

// Package storage defines the persistence contract for ranking jobs.
//
// A completed job is stored as one JobRecord plus one CandidateRecord per
// surviving document. Both are encoded with the mus-go binary format; the
// first varint of every value is a codec version.
//
// The storage/badger sub-package implements JobRepository on BadgerDB.
// Persistence is best effort from the pipeline's point of view: the live
// status store, not the repository, is the source of truth while a job runs.
package storage
