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


// Package storage provides the storage abstraction layer for mailrecall.
//
// Emails live in two stores that fail independently and are never joined by
// a transaction:
//
//   - RecordStore: the relational system of record (storage/postgres)
//   - SearchIndex: a rebuildable semantic projection (storage/badger)
//
// The email id is the only join key between them.
//
// # Constructor Return Type Pattern
//
// Public constructors return concrete types whose methods satisfy the
// interfaces defined here; callers hold the interfaces:
//
//	var records storage.RecordStore = postgres.NewStore(pool)
//	var index storage.SearchIndex = badger.NewIndex(path, embedder)
//
// # Idempotency
//
// Writes are safe to repeat. RecordStore.SaveEmails ignores ids that already
// exist, and the ETL pipeline only adds documents the index does not yet
// hold, so re-running a fetch over the same messages converges to the same
// state in both stores.
//
// # Lifecycle
//
// Both stores are opened explicitly and closed idempotently. Operations on a
// SearchIndex that has not been initialized return ErrStorageClosed.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
