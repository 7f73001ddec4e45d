// Package onnx provides an on-device sentence embedder backed by ONNX Runtime.
//
// The runtime is only linked when built with the onnx tag:
//
//	go build -tags onnx ./...
//
// Without the tag New returns an error wrapping core.ErrProviderUnavailable,
// and startup falls back to the unavailable embedder.
package onnx

import (
	"math"

	"github.com/poiesic/mnemo/ai"
)

// sequenceLength is the fixed token window fed to the model.
const sequenceLength = 128

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library. Empty uses the runtime default.
	LibraryPath string

	// Dimensions is the embedding vector size (384 for bge-small and MiniLM).
	Dimensions int
}

// ConfigFrom extracts the onnx settings from an ai.Config.
func ConfigFrom(c *ai.Config) Config {
	return Config{
		ModelPath:     c.ONNXModelPath,
		TokenizerPath: c.ONNXTokenizerPath,
		LibraryPath:   c.ONNXLibraryPath,
		Dimensions:    c.Dimensions,
	}
}

// meanPool averages hidden states over attended positions.
// hidden is laid out as [seqLen][dims].
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	pooled := make([]float32, dims)
	var attended float32
	for i, m := range mask {
		if m == 0 {
			continue
		}
		attended++
		offset := i * dims
		for j := 0; j < dims; j++ {
			pooled[j] += hidden[offset+j]
		}
	}
	if attended == 0 {
		return pooled
	}
	for j := range pooled {
		pooled[j] /= attended
	}
	return pooled
}

// normalize scales vec to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * scale
	}
	return out
}
