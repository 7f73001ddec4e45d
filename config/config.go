// Package config loads mnemo settings from a YAML file with an environment
// overlay. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/mnemo/ai"
)

// Storage backends accepted by StorageConfig.Backend.
const (
	StorageBadger = "badger"
	StorageSQLite = "sqlite"
)

// Token counters accepted by ContextConfig.Tokenizer.
const (
	TokenizerHeuristic = "heuristic"
)

// Config holds all configuration for mnemo.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Context   ContextConfig   `yaml:"context"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Identity  IdentityConfig  `yaml:"identity"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects the store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "badger" or "sqlite"
	Path    string `yaml:"path"`    // defaults to a file or directory under DataDir
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	Backend    string     `yaml:"backend"` // "openai", "onnx" or "none"
	Host       string     `yaml:"host"`
	Model      string     `yaml:"model"`
	Dimensions int        `yaml:"dimensions"`
	APIKey     string     `yaml:"api_key,omitempty"`
	ONNX       ONNXConfig `yaml:"onnx"`
}

// ONNXConfig locates the on-device model.
type ONNXConfig struct {
	Model     string `yaml:"model"`
	Tokenizer string `yaml:"tokenizer"`
	Library   string `yaml:"library"`
}

// ChatConfig configures the reply model.
type ChatConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// ContextConfig bounds the assembled prompt.
type ContextConfig struct {
	SearchK       int    `yaml:"search_k"`
	RecentN       int    `yaml:"recent_n"`
	MemoryTokens  int    `yaml:"memory_tokens"`
	RecentTokens  int    `yaml:"recent_tokens"`
	CeilingTokens int    `yaml:"ceiling_tokens"`
	SnippetChars  int    `yaml:"snippet_chars"`
	Tokenizer     string `yaml:"tokenizer"` // "heuristic" or a tiktoken encoding such as "cl100k_base"
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	ChunkWords    int           `yaml:"chunk_words"`
	Workers       int           `yaml:"workers"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// IdentityConfig locates the identity layer sources.
type IdentityConfig struct {
	File      string `yaml:"file"`       // defaults to DataDir/IDENTITY.md
	SkillsDir string `yaml:"skills_dir"` // defaults to DataDir/skills
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultDataDir is ~/.mnemo, or .mnemo when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mnemo"
	}
	return filepath.Join(home, ".mnemo")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	defaults := ai.DefaultConfig()
	return &Config{
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{Backend: StorageBadger},
		Embedding: EmbeddingConfig{
			Backend:    defaults.Embedder,
			Host:       defaults.EmbeddingHost,
			Model:      defaults.EmbeddingModel,
			Dimensions: defaults.Dimensions,
		},
		Chat: ChatConfig{
			Host:        defaults.ChatHost,
			Model:       defaults.ChatModel,
			Temperature: defaults.Temperature,
		},
		Context: ContextConfig{
			SearchK:       5,
			RecentN:       15,
			MemoryTokens:  500,
			RecentTokens:  2000,
			CeilingTokens: 3000,
			SnippetChars:  300,
			Tokenizer:     TokenizerHeuristic,
		},
		Ingest: IngestConfig{
			ChunkWords:    400,
			RetryAttempts: 2,
			RetryDelay:    200 * time.Millisecond,
			FetchTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays MNEMO_* environment variables onto the configuration.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"MNEMO_DATA_DIR":        &c.DataDir,
		"MNEMO_STORAGE":         &c.Storage.Backend,
		"MNEMO_EMBEDDER":        &c.Embedding.Backend,
		"MNEMO_EMBEDDING_HOST":  &c.Embedding.Host,
		"MNEMO_EMBEDDING_MODEL": &c.Embedding.Model,
		"MNEMO_CHAT_HOST":       &c.Chat.Host,
		"MNEMO_CHAT_MODEL":      &c.Chat.Model,
		"MNEMO_API_KEY":         &c.Embedding.APIKey,
		"MNEMO_LOG_LEVEL":       &c.Logging.Level,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("MNEMO_EMBEDDING_DIMENSIONS"); ok && v != "" {
		dims, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MNEMO_EMBEDDING_DIMENSIONS: %w", err)
		}
		c.Embedding.Dimensions = dims
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch c.Storage.Backend {
	case StorageBadger, StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if c.Embedding.Backend != ai.BackendNone && c.Embedding.Dimensions < 1 {
		errs = append(errs, errors.New("embedding.dimensions must be greater than 0"))
	}

	positive := map[string]int{
		"context.search_k":       c.Context.SearchK,
		"context.recent_n":       c.Context.RecentN,
		"context.memory_tokens":  c.Context.MemoryTokens,
		"context.recent_tokens":  c.Context.RecentTokens,
		"context.ceiling_tokens": c.Context.CeilingTokens,
		"context.snippet_chars":  c.Context.SnippetChars,
		"ingest.chunk_words":     c.Ingest.ChunkWords,
		"ingest.retry_attempts":  c.Ingest.RetryAttempts,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than 0", name))
		}
	}
	if c.Ingest.Workers < 0 {
		errs = append(errs, errors.New("ingest.workers must not be negative"))
	}
	if c.Ingest.FetchTimeout <= 0 {
		errs = append(errs, errors.New("ingest.fetch_timeout must be greater than 0"))
	}
	return errors.Join(errs...)
}

// StorePath is where the store lives.
func (c *Config) StorePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == StorageSQLite {
		return filepath.Join(c.DataDir, "memory.db")
	}
	return filepath.Join(c.DataDir, "memory")
}

// IdentityFile is the identity layer source.
func (c *Config) IdentityFile() string {
	if c.Identity.File != "" {
		return c.Identity.File
	}
	return filepath.Join(c.DataDir, "IDENTITY.md")
}

// SkillsDir holds the skill files appended to the identity.
func (c *Config) SkillsDir() string {
	if c.Identity.SkillsDir != "" {
		return c.Identity.SkillsDir
	}
	return filepath.Join(c.DataDir, "skills")
}

// AI builds the model service configuration.
func (c *Config) AI() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbedder(c.Embedding.Backend),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithChatHost(c.Chat.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithChatModel(c.Chat.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithDimensions(c.Embedding.Dimensions),
		ai.WithONNXModel(c.Embedding.ONNX.Model, c.Embedding.ONNX.Tokenizer, c.Embedding.ONNX.Library),
	)
	cfg.Temperature = c.Chat.Temperature
	cfg.Normalize()
	return cfg
}
