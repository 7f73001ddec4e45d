package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)

		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(payload.Input))
		for i, text := range payload.Input {
			vec := make([]float32, dims)
			vec[0] = float32(len(text))
			data[i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  payload.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	server := embeddingServer(t, 4)
	defer server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithDimensions(4),
	))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"tea", "coffee"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(3), vectors[0][0])
	assert.Equal(t, float32(6), vectors[1][0])

	assert.Equal(t, 4, embedder.Dimensions())
	assert.Equal(t, "openai:test-embed@4", embedder.Name())

	wider, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithDimensions(8),
	))
	require.NoError(t, err)
	assert.NotEqual(t, embedder.Name(), wider.Name(), "width is part of the identity")
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	server := embeddingServer(t, 8)
	defer server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(server.URL),
		ai.WithDimensions(4),
	))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "tea")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "tea")
	assert.Error(t, err)
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}

func TestChatModel_Complete(t *testing.T) {
	var roles []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var payload struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		for _, m := range payload.Messages {
			roles = append(roles, m.Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "  Tea is a beverage.  "},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	chat, err := NewChatModel(ai.NewConfig(
		ai.WithChatHost(server.URL),
		ai.WithChatModel("test-chat"),
	))
	require.NoError(t, err)

	reply, err := chat.Complete(context.Background(), "You are a helpful assistant.", []ai.Message{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: core.RoleUser, Content: "what is tea?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tea is a beverage.", reply)
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}
