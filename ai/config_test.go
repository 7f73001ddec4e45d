package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, BackendOpenAI, cfg.Embedder)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "bge-small-en-v1.5", cfg.EmbeddingModel)
	assert.Equal(t, DefaultDimensions, cfg.Dimensions)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, 384, cfg.Dimensions)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbedder(BackendONNX),
			WithONNXModel("/models/model.onnx", "/models/tokenizer.json", "/usr/lib/libonnxruntime.so"),
			WithDimensions(768),
			WithChatModel("llama3.1:8b"),
			WithAPIKey("sk-test"),
		)

		assert.Equal(t, BackendONNX, cfg.Embedder)
		assert.Equal(t, "/models/model.onnx", cfg.ONNXModelPath)
		assert.Equal(t, "/models/tokenizer.json", cfg.ONNXTokenizerPath)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.Equal(t, "llama3.1:8b", cfg.ChatModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		expectedHost string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expectedHost: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expectedHost: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expectedHost: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expectedHost: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Embedder:      " OpenAI ",
				EmbeddingHost: tt.host,
				ChatHost:      tt.host,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedHost, cfg.ChatHost)
			assert.Equal(t, BackendOpenAI, cfg.Embedder)
			assert.Equal(t, "none", cfg.APIKey)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing embedding host",
			mutate:  func(c *Config) { c.EmbeddingHost = "" },
			wantErr: "EmbeddingHost",
		},
		{
			name:    "missing embedding model",
			mutate:  func(c *Config) { c.EmbeddingModel = "" },
			wantErr: "EmbeddingModel",
		},
		{
			name:    "onnx without model path",
			mutate:  func(c *Config) { c.Embedder = BackendONNX },
			wantErr: "ONNXModelPath",
		},
		{
			name: "onnx without tokenizer",
			mutate: func(c *Config) {
				c.Embedder = BackendONNX
				c.ONNXModelPath = "/models/model.onnx"
			},
			wantErr: "ONNXTokenizerPath",
		},
		{
			name: "none ignores hosts",
			mutate: func(c *Config) {
				c.Embedder = BackendNone
				c.EmbeddingHost = ""
				c.EmbeddingModel = ""
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Embedder = "word2vec" },
			wantErr: "unknown embedder",
		},
		{
			name:    "zero dimensions",
			mutate:  func(c *Config) { c.Dimensions = 0 },
			wantErr: "Dimensions",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Temperature = 3 },
			wantErr: "Temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateChat(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateChat())

	cfg.ChatModel = ""
	err := cfg.ValidateChat()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatModel")
}

type fixedEmbedder struct{ dims int }

func (f fixedEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) { return nil, nil }
func (f fixedEmbedder) EmbedTexts(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}
func (f fixedEmbedder) Dimensions() int { return f.dims }
func (f fixedEmbedder) Name() string    { return "fixed" }

func TestAvailable(t *testing.T) {
	assert.False(t, Available(nil))
	assert.False(t, Available(fixedEmbedder{dims: 0}))
	assert.True(t, Available(fixedEmbedder{dims: 384}))
}
