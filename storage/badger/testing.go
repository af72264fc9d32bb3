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


package badger

import "github.com/poiesic/mailrecall/ai"

// NewMemoryIndex returns an uninitialized index backed by an in-memory
// BadgerDB. Call Init before use.
func NewMemoryIndex(embedder ai.Embedder, opts ...IndexOption) *Index {
	ix := NewIndex("", embedder, opts...)
	ix.inMemory = true
	return ix
}
