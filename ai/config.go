package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Embedder backends accepted by Config.Embedder.
const (
	BackendOpenAI = "openai"
	BackendONNX   = "onnx"
	BackendNone   = "none"
)

// DefaultDimensions is the vector length of the default sentence models.
const DefaultDimensions = 384

// Config holds configuration for model service providers.
type Config struct {
	// Embedder selects the embedding backend: openai, onnx or none.
	Embedder string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion API.
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "bge-small-en-v1.5", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model identifier used for replies.
	ChatModel string

	// APIKey is sent as the bearer token. Local servers accept "none".
	APIKey string

	// Dimensions is the expected embedding length.
	Dimensions int

	// Temperature is the sampling temperature for replies.
	Temperature float64

	// ONNXModelPath is the path to the sentence model for the onnx backend.
	ONNXModelPath string

	// ONNXTokenizerPath is the path to the tokenizer.json for the onnx backend.
	ONNXTokenizerPath string

	// ONNXLibraryPath is the path to the onnxruntime shared library.
	ONNXLibraryPath string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbedder selects the embedding backend.
func WithEmbedder(backend string) ConfigOption {
	return func(c *Config) {
		c.Embedder = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the expected embedding length.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithONNXModel sets the model, tokenizer and runtime library paths for the onnx backend.
func WithONNXModel(modelPath, tokenizerPath, libraryPath string) ConfigOption {
	return func(c *Config) {
		c.ONNXModelPath = modelPath
		c.ONNXTokenizerPath = tokenizerPath
		c.ONNXLibraryPath = libraryPath
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		Embedder:       BackendOpenAI,
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		EmbeddingModel: "bge-small-en-v1.5",
		ChatModel:      "qwen2.5:7b",
		APIKey:         "none",
		Dimensions:     DefaultDimensions,
		Temperature:    0.7,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Embedder = strings.ToLower(strings.TrimSpace(c.Embedder))
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Embedder {
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required")
		}
	case BackendONNX:
		if c.ONNXModelPath == "" {
			return errors.New("ai config: ONNXModelPath is required")
		}
		if c.ONNXTokenizerPath == "" {
			return errors.New("ai config: ONNXTokenizerPath is required")
		}
	case BackendNone:
	default:
		return fmt.Errorf("ai config: unknown embedder %q", c.Embedder)
	}
	if c.Dimensions < 1 {
		return errors.New("ai config: Dimensions must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}

// ValidateChat checks the settings needed by a ChatModel.
func (c *Config) ValidateChat() error {
	c.Normalize()
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	return nil
}
