package agent

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrAssemblerRequired is returned when an assembler is not provided.
	ErrAssemblerRequired = errors.New("assembler required")

	// ErrNoChatModel is returned when a turn is requested without a chat model.
	ErrNoChatModel = errors.New("no chat model configured")

	// ErrNoIngestor is returned when ingestion is requested without an ingestor.
	ErrNoIngestor = errors.New("no ingestor configured")

	// ErrEmptyInput is returned for blank input.
	ErrEmptyInput = errors.New("input is empty")
)
