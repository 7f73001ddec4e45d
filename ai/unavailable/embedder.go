// Package unavailable provides the embedder used when no embedding backend
// could be initialized. Every call fails with core.ErrProviderUnavailable.
package unavailable

import (
	"context"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
)

// Embedder is the unavailable variant of ai.Embedder.
type Embedder struct{}

var _ ai.Embedder = Embedder{}

// New returns the unavailable embedder.
func New() ai.Embedder {
	return Embedder{}
}

func (Embedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, core.ErrProviderUnavailable
}

func (Embedder) EmbedTexts(_ context.Context, _ []string) ([][]float32, error) {
	return nil, core.ErrProviderUnavailable
}

// Dimensions is always 0.
func (Embedder) Dimensions() int {
	return 0
}

func (Embedder) Name() string {
	return "unavailable"
}
