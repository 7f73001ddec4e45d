// Package ingestion splits documents into word-bounded chunks and stores
// each chunk as an independent memory.
//
// The Ingestor embeds chunks concurrently on a worker pool and writes them
// to the store in document order. A chunk whose embedding fails after
// retries is skipped and counted; storage failures stop the document. In
// both cases the chunks already written are kept and the returned summary
// says how many there are.
//
// Fetching is a separate collaborator: Load reads a file path or fetches a
// URL with a bounded timeout and hands plain text to the Ingestor.
package ingestion
