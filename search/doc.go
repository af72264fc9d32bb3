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


// Package search answers the assistant's read-only email questions.
//
// A Searcher resolves candidate ids through the semantic search index, or
// through record store ordering for recent mail, then hydrates each id from
// the record store. Ids that fail to hydrate are skipped. None of the query
// methods return errors: failures are logged and produce an empty result so
// the conversational layer can answer gracefully.
package search
