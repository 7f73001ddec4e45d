package ingestion

import "strings"

// DefaultChunkWords is the number of words per chunk.
const DefaultChunkWords = 400

// Chunk splits text into segments of at most words words, breaking only at
// whitespace. Runs of whitespace inside a chunk collapse to a single space.
// A text of L words yields ceil(L/words) chunks; blank text yields none.
func Chunk(text string, words int) ([]string, error) {
	if words <= 0 {
		return nil, ErrInvalidChunkSize
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, nil
	}

	chunks := make([]string, 0, (len(fields)+words-1)/words)
	for start := 0; start < len(fields); start += words {
		end := min(start+words, len(fields))
		chunks = append(chunks, strings.Join(fields[start:end], " "))
	}
	return chunks, nil
}
