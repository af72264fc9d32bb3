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


package etl

import "errors"

var (
	// ErrFetcherRequired is returned when a fetcher is not provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrRecordStoreRequired is returned when a record store is not provided.
	ErrRecordStoreRequired = errors.New("record store required")

	// ErrSearchIndexRequired is returned when a search index is not provided.
	ErrSearchIndexRequired = errors.New("search index required")

	// ErrRunnerRequired is returned when a scheduler has nothing to run.
	ErrRunnerRequired = errors.New("runner required")

	// ErrRunInProgress is returned when another run holds the account lock.
	ErrRunInProgress = errors.New("etl run already in progress")

	// ErrExtract wraps fetch failures.
	ErrExtract = errors.New("extract failed")

	// ErrLoadRecords wraps record store load failures.
	ErrLoadRecords = errors.New("record load failed")

	// ErrLoadIndex wraps search index load failures.
	ErrLoadIndex = errors.New("index load failed")
)
