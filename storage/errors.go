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


package storage

import "errors"

var (
	// ErrNotFound indicates no memory has the requested id.
	ErrNotFound = errors.New("memory not found")

	// ErrStorageClosed indicates the store was used after Close.
	ErrStorageClosed = errors.New("store is closed")

	// ErrInvalidQuery indicates an unknown candidate mode or bad filter.
	ErrInvalidQuery = errors.New("invalid candidate query")

	// ErrSerializationFailed indicates a stored value could not be encoded or decoded.
	ErrSerializationFailed = errors.New("value encoding failed")

	// ErrTruncatedData indicates an id or vector value of the wrong length.
	ErrTruncatedData = errors.New("truncated value")
)
