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


// Package etl moves email from the provider into the record store and the
// search index.
//
// A run is one job: extract raw records with a Fetcher, transform them into
// canonical emails, load them into the record store, then project them into
// the search index. The record store is the system of record; a failed index
// load is reported on the Result but does not fail the job, and the next run
// fills the gap because the index loader only adds what is missing.
//
// Basic usage:
//
//	pipeline, err := etl.NewPipeline(fetcher, store, index,
//		etl.WithLogger(logger),
//		etl.WithFetchLimits(10, 5),
//	)
//	if err != nil {
//		return err
//	}
//	result, err := pipeline.Run(ctx, grantID)
//
// Runs for several accounts can be driven on an interval by a Scheduler.
package etl
