//go:build onnx

package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// Embedder generates embeddings using ONNX Runtime.
type Embedder struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
	name       string
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// New loads the model and tokenizer and opens an inference session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: onnx model path is required", core.ErrProviderUnavailable)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = ai.DefaultDimensions
	}

	initOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("%w: initialize onnx runtime: %w", core.ErrProviderUnavailable, initErr)
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer: %w", core.ErrProviderUnavailable, err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create onnx session: %w", core.ErrProviderUnavailable, err)
	}

	model := strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath))
	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		name:       "onnx:" + model,
		logger:     slog.Default().With("component", "onnx-embedder"),
	}, nil
}

// EmbedText converts text to a unit-length embedding vector.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask := e.tokenizer.Encode(text, sequenceLength)
	typeIDs := make([]int64, sequenceLength)

	shape := ort.NewShape(1, int64(sequenceLength))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, output := range outputs {
			if output != nil {
				output.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	data := tensor.GetData()
	shapeOut := tensor.GetShape()

	var embedding []float32
	switch len(shapeOut) {
	case 2:
		embedding = append([]float32(nil), data...)
	case 3:
		embedding = meanPool(data, mask, int(shapeOut[2]))
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shapeOut)
	}
	if len(embedding) != e.dimensions {
		return nil, &core.DimensionMismatchError{Got: len(embedding), Want: e.dimensions}
	}

	return normalize(embedding), nil
}

// EmbedTexts embeds each text in turn.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Name identifies the model file.
func (e *Embedder) Name() string {
	return e.name
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
