package ai

import (
	"context"

	"github.com/poiesic/mnemo/core"
)

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns core.ErrProviderUnavailable when no backend is active.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length, or 0 when unavailable.
	Dimensions() int

	// Name identifies the model behind the vectors. Vectors produced under
	// a different name are never compared with this embedder's output.
	Name() string
}

// Message is one entry of the conversation history sent to a ChatModel.
type Message struct {
	Role    core.Role
	Content string
}

// ChatModel produces a reply for an assembled prompt.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Complete sends the system prompt and message history and returns the
	// model's reply text.
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Closer is implemented by embedders that hold native resources.
type Closer interface {
	Close() error
}

// Available reports whether e can produce vectors.
func Available(e Embedder) bool {
	return e != nil && e.Dimensions() > 0
}
