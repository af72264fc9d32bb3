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


// Package postgres implements storage.RecordStore on PostgreSQL using pgx.
//
// The store owns two tables, emails and etl_jobs, created on Connect. Batch
// email writes are insert-or-ignore inside a single transaction; single
// writes are upsert-replace. Job terminal transitions are guarded in SQL so
// a job reaches COMPLETED or FAILED at most once.
package postgres
