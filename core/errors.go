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


package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by every component.
var (
	// ErrProviderUnavailable indicates no embedding backend is active.
	// Retriever and Ingestor absorb it by switching to lexical mode.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrStorageFailure indicates a read or write against the store failed.
	ErrStorageFailure = errors.New("storage failure")

	// ErrPartialIngestion indicates some chunks of a document were not stored.
	ErrPartialIngestion = errors.New("ingestion partially failed")

	// ErrDimensionMismatch indicates a vector length disagrees with the active dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")
)

// DimensionMismatchError describes a vector whose length disagrees with the
// active embedder.
type DimensionMismatchError struct {
	RecordID ID // zero for query vectors
	Got      int
	Want     int
}

func (e *DimensionMismatchError) Error() string {
	if e.RecordID == 0 {
		return fmt.Sprintf("%s: query vector has %d dimensions, embedder produces %d", ErrDimensionMismatch, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: record %d has %d dimensions, embedder produces %d", ErrDimensionMismatch, e.RecordID, e.Got, e.Want)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// PartialIngestionError reports how many chunks were stored before a failure.
type PartialIngestionError struct {
	Summary IngestSummary
	Cause   error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("%s: stored %d of %d chunks from %s: %v",
		ErrPartialIngestion, e.Summary.ChunkCount, e.Summary.TotalCount, e.Summary.Source, e.Cause)
}

func (e *PartialIngestionError) Is(target error) bool {
	return target == ErrPartialIngestion
}

func (e *PartialIngestionError) Unwrap() error {
	return e.Cause
}
