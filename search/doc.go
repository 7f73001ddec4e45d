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


// Package search ranks stored memories against a query.
//
// The Retriever picks one of two modes per call:
//   - Vector: cosine similarity between the query embedding and every
//     stored embedding produced by the active embedder
//   - Lexical: count of case-folded query-term occurrences in each record
//
// Vector mode is used when the embedder returns a vector and the store holds
// at least one comparable embedding in scope; otherwise the call runs
// lexically. A single call never mixes the two. Equal scores are ordered by
// timestamp, most recent first, then by id, highest first.
package search
