package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mnemo/ai"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
	assert.Equal(t, ai.BackendOpenAI, cfg.Embedding.Backend)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Context.SearchK)
	assert.Equal(t, 15, cfg.Context.RecentN)
	assert.Equal(t, 500, cfg.Context.MemoryTokens)
	assert.Equal(t, 2000, cfg.Context.RecentTokens)
	assert.Equal(t, 3000, cfg.Context.CeilingTokens)
	assert.Equal(t, 400, cfg.Ingest.ChunkWords)
	assert.Equal(t, 30*time.Second, cfg.Ingest.FetchTimeout)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "mnemo.yaml")
		content := `
data_dir: /srv/mnemo
storage:
  backend: sqlite
embedding:
  backend: none
context:
  ceiling_tokens: 2500
ingest:
  retry_delay: 1s
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "/srv/mnemo", cfg.DataDir)
		assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
		assert.Equal(t, "/srv/mnemo/memory.db", cfg.StorePath())
		assert.Equal(t, ai.BackendNone, cfg.Embedding.Backend)
		assert.Equal(t, 2500, cfg.Context.CeilingTokens)
		assert.Equal(t, 500, cfg.Context.MemoryTokens)
		assert.Equal(t, time.Second, cfg.Ingest.RetryDelay)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("context: [unclosed"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "mnemo.yaml")
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.Chat.Model = "llama3"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MNEMO_DATA_DIR", "/env/data")
	t.Setenv("MNEMO_EMBEDDER", "onnx")
	t.Setenv("MNEMO_CHAT_MODEL", "mistral")
	t.Setenv("MNEMO_EMBEDDING_DIMENSIONS", "768")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "onnx", cfg.Embedding.Backend)
	assert.Equal(t, "mistral", cfg.Chat.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)

	t.Setenv("MNEMO_EMBEDDING_DIMENSIONS", "many")
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MNEMO_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("MNEMO_TEST_DOTENV", "")
	os.Unsetenv("MNEMO_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("MNEMO_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"zero dims", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"zero ceiling", func(c *Config) { c.Context.CeilingTokens = 0 }, "context.ceiling_tokens"},
		{"zero chunk", func(c *Config) { c.Ingest.ChunkWords = 0 }, "ingest.chunk_words"},
		{"negative workers", func(c *Config) { c.Ingest.Workers = -1 }, "ingest.workers"},
		{"empty data dir", func(c *Config) { c.DataDir = " " }, "data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.Embedding.Backend = ai.BackendNone
	cfg.Embedding.Dimensions = 0
	assert.NoError(t, cfg.Validate(), "dimensions are irrelevant without an embedder")
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/d"
	assert.Equal(t, "/d/memory", cfg.StorePath())
	assert.Equal(t, "/d/IDENTITY.md", cfg.IdentityFile())
	assert.Equal(t, "/d/skills", cfg.SkillsDir())

	cfg.Storage.Path = "/elsewhere"
	cfg.Identity.File = "/id.md"
	cfg.Identity.SkillsDir = "/skills"
	assert.Equal(t, "/elsewhere", cfg.StorePath())
	assert.Equal(t, "/id.md", cfg.IdentityFile())
	assert.Equal(t, "/skills", cfg.SkillsDir())
}

func TestAI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Host = "http://gpu:8080"
	cfg.Chat.Temperature = 0.2

	aiCfg := cfg.AI()
	assert.Equal(t, "http://gpu:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "none", aiCfg.APIKey)
	assert.Equal(t, 0.2, aiCfg.Temperature)
	assert.NoError(t, aiCfg.Validate())
}
