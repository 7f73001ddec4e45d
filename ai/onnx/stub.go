//go:build !onnx

package onnx

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/mnemo/core"
)

// ErrNotBuilt is returned when the binary was built without the onnx tag.
var ErrNotBuilt = errors.New("built without onnx support")

// Embedder is a placeholder so callers compile without the onnx tag.
type Embedder struct{}

// New always fails without the onnx build tag.
func New(_ Config) (*Embedder, error) {
	return nil, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, ErrNotBuilt)
}

func (*Embedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, core.ErrProviderUnavailable
}

func (*Embedder) EmbedTexts(_ context.Context, _ []string) ([][]float32, error) {
	return nil, core.ErrProviderUnavailable
}

func (*Embedder) Dimensions() int { return 0 }

func (*Embedder) Name() string { return "onnx" }

func (*Embedder) Close() error { return nil }
