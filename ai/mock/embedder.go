package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/poiesic/mnemo/ai"
)

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// Dims is the vector length. Defaults to 384.
	Dims int

	// ModelName is reported by Name. Defaults to "mock".
	ModelName string

	topics    map[string]int
	callCount atomic.Int64
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dims: 384, ModelName: "mock"}
}

// WithEmbedTextFunc overrides EmbedText.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EmbedTextFunc = fn
	return m
}

// WithTopics maps words to topic axes. Text embeds as the normalized sum of
// the axes of its known words, so texts sharing a topic score close together.
// Text with no known word falls back to the hash vector.
func (m *MockEmbedder) WithTopics(topics map[string]int) *MockEmbedder {
	m.topics = topics
	return m
}

// EmbedText generates a deterministic embedding.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	if vec := m.topicVector(text); vec != nil {
		return vec, nil
	}
	return generateDeterministicVector(text, m.Dimensions()), nil
}

// EmbedTexts embeds each text through EmbedText.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.Dims == 0 {
		return 384
	}
	return m.Dims
}

func (m *MockEmbedder) Name() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// CallCount returns the number of embedded texts.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and overrides.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.topics = nil
}

func (m *MockEmbedder) topicVector(text string) []float32 {
	if len(m.topics) == 0 {
		return nil
	}
	vec := make([]float32, m.Dimensions())
	found := false
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if axis, ok := m.topics[w]; ok && axis < len(vec) {
			vec[axis]++
			found = true
		}
	}
	if !found {
		return nil
	}
	return unit(vec)
}

// generateDeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func generateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return unit(vector)
}

func unit(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vector
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
