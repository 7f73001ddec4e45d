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


package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyDocument is returned when a document contains no words.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrSourceRequired is returned when a document has no source identifier.
	ErrSourceRequired = errors.New("source required")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidMaxAttempts is returned when the retry attempt count is not positive.
	ErrInvalidMaxAttempts = errors.New("retry attempts must be greater than 0")

	// ErrUnsupportedContent is returned when a fetched resource is not text.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrDocumentTooLarge is returned when a fetched body exceeds the size cap.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrNoMatches is returned when a path pattern matches no files.
	ErrNoMatches = errors.New("no files match pattern")
)
