// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mnemo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/poiesic/mnemo/agent"
	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/ai/onnx"
	"github.com/poiesic/mnemo/ai/openai"
	"github.com/poiesic/mnemo/ai/unavailable"
	"github.com/poiesic/mnemo/assembler"
	"github.com/poiesic/mnemo/config"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/ingestion"
	"github.com/poiesic/mnemo/search"
	"github.com/poiesic/mnemo/storage"
	"github.com/poiesic/mnemo/storage/badger"
	"github.com/poiesic/mnemo/storage/sqlite"
)

// probeTimeout bounds the startup embedding probe.
const probeTimeout = 10 * time.Second

// ErrConfigRequired is returned by Open when cfg is nil.
var ErrConfigRequired = errors.New("config is required")

// Memory wires a store, an embedder and the components built on them.
type Memory struct {
	cfg       *config.Config
	backend   *badger.Backend
	store     storage.Store
	embedder  ai.Embedder
	chat      ai.ChatModel
	retriever *search.Retriever
	changed   bool
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	embedder ai.Embedder
	chat     ai.ChatModel
	inMemory bool
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmbedder skips embedder selection and uses e.
func WithEmbedder(e ai.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithChatModel skips chat model construction and uses chat.
func WithChatModel(chat ai.ChatModel) Option {
	return func(o *options) {
		o.chat = chat
	}
}

// InMemory keeps a badger store in memory. Ignored for sqlite.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// Open opens the configured store and selects an embedder.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Memory, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Memory{cfg: cfg, logger: o.logger}
	if err := m.openStore(o.inMemory); err != nil {
		return nil, err
	}

	m.embedder = o.embedder
	if m.embedder == nil {
		embedder, err := SelectEmbedder(ctx, cfg.AI(), o.logger)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.embedder = embedder
	}

	previous, err := m.store.RecordEmbedder(ctx, storage.EmbedderInfo{
		Name:       m.embedder.Name(),
		Dimensions: m.embedder.Dimensions(),
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		m.Close()
		return nil, err
	}
	if ai.Available(m.embedder) && previous.Name != "" && previous.Name != m.embedder.Name() {
		m.changed = true
		o.logger.Warn("embedder changed; vectors from the previous embedder are ignored for ranking",
			"previous", previous.Name, "current", m.embedder.Name())
	}

	m.retriever, err = search.NewRetriever(m.store, m.embedder, search.WithLogger(o.logger))
	if err != nil {
		m.Close()
		return nil, err
	}

	m.chat = o.chat
	if m.chat == nil {
		chat, err := openai.NewChatModel(cfg.AI())
		if err != nil {
			o.logger.Warn("chat model not configured", "err", err)
		} else {
			m.chat = chat
		}
	}
	return m, nil
}

func (m *Memory) openStore(inMemory bool) error {
	switch m.cfg.Storage.Backend {
	case config.StorageSQLite:
		if err := os.MkdirAll(m.cfg.DataDir, 0o700); err != nil {
			return err
		}
		store, err := sqlite.Open(m.cfg.StorePath(), sqlite.WithLogger(m.logger))
		if err != nil {
			return err
		}
		m.store = store
		return nil
	default:
		opts := []badger.BackendOption{badger.WithBackendLogger(m.logger)}
		if inMemory {
			opts = append(opts, badger.InMemory())
		}
		backend, err := badger.OpenBackend(m.cfg.StorePath(), opts...)
		if err != nil {
			return err
		}
		store, err := badger.NewStore(backend, badger.WithLogger(m.logger))
		if err != nil {
			backend.Close()
			return err
		}
		m.backend = backend
		m.store = store
		return nil
	}
}

// SelectEmbedder builds the configured embedder and probes it once.
// A backend that cannot be reached is logged and replaced by the
// unavailable embedder. A probe vector of the wrong length is an error.
func SelectEmbedder(ctx context.Context, cfg *ai.Config, logger *slog.Logger) (ai.Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedder", "backend", cfg.Embedder)

	var (
		embedder ai.Embedder
		err      error
	)
	switch cfg.Embedder {
	case ai.BackendNone:
		logger.Info("embedding disabled; search is lexical")
		return unavailable.New(), nil
	case ai.BackendONNX:
		var e *onnx.Embedder
		e, err = onnx.New(onnx.ConfigFrom(cfg))
		if err == nil {
			embedder = e
		}
	default:
		embedder, err = openai.NewEmbedder(cfg)
	}
	if err != nil {
		logger.Warn("embedding provider unavailable; search is lexical", "err", err)
		return unavailable.New(), nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := embedder.EmbedText(probeCtx, "probe"); err != nil {
		if errors.Is(err, core.ErrDimensionMismatch) {
			closeEmbedder(embedder, logger)
			return nil, err
		}
		logger.Warn("embedding provider unavailable; search is lexical", "err", err)
		closeEmbedder(embedder, logger)
		return unavailable.New(), nil
	}
	logger.Debug("embedding provider ready", "name", embedder.Name(), "dimensions", embedder.Dimensions())
	return embedder, nil
}

func closeEmbedder(e ai.Embedder, logger *slog.Logger) {
	if c, ok := e.(ai.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Error("error closing embedder", "err", err)
		}
	}
}

// Store returns the open store.
func (m *Memory) Store() storage.Store {
	return m.store
}

// Embedder returns the active embedder.
func (m *Memory) Embedder() ai.Embedder {
	return m.embedder
}

// EmbedderChanged reports whether the store last recorded a different embedder.
func (m *Memory) EmbedderChanged() bool {
	return m.changed
}

// Retriever returns the shared retriever.
func (m *Memory) Retriever() *search.Retriever {
	return m.retriever
}

// NewIngestor creates an ingestor configured from Config.Ingest.
// The caller releases it.
func (m *Memory) NewIngestor(opts ...ingestion.Option) (*ingestion.Ingestor, error) {
	ic := m.cfg.Ingest
	base := []ingestion.Option{
		ingestion.WithChunkWords(ic.ChunkWords),
		ingestion.WithRetry(ic.RetryAttempts, ic.RetryDelay),
		ingestion.WithLogger(m.logger),
	}
	if ic.Workers > 0 {
		base = append(base, ingestion.WithPoolSize(ic.Workers))
	}
	return ingestion.NewIngestor(m.store, m.embedder, append(base, opts...)...)
}

// NewFetcher creates a fetcher whose requests time out after
// Config.Ingest.FetchTimeout.
func (m *Memory) NewFetcher() *ingestion.Fetcher {
	return ingestion.NewFetcher(
		ingestion.WithHTTPClient(&http.Client{Timeout: m.cfg.Ingest.FetchTimeout}),
		ingestion.WithFetchLogger(m.logger),
	)
}

// Budget converts Config.Context into an assembler budget.
func (m *Memory) Budget() assembler.Budget {
	cc := m.cfg.Context
	return assembler.Budget{
		SearchK:      cc.SearchK,
		RecentN:      cc.RecentN,
		Memories:     cc.MemoryTokens,
		Recent:       cc.RecentTokens,
		Ceiling:      cc.CeilingTokens,
		SnippetChars: cc.SnippetChars,
	}
}

// NewAssembler loads the identity layer and creates an assembler.
func (m *Memory) NewAssembler(opts ...assembler.Option) (*assembler.Assembler, error) {
	identity, err := assembler.LoadIdentity(m.cfg.IdentityFile(), m.cfg.SkillsDir())
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	base := []assembler.Option{
		assembler.WithBudget(m.Budget()),
		assembler.WithLogger(m.logger),
	}
	if enc := m.cfg.Context.Tokenizer; enc != "" && enc != config.TokenizerHeuristic {
		counter, err := assembler.NewTiktokenCounter(enc)
		if err != nil {
			return nil, err
		}
		base = append(base, assembler.WithTokenCounter(counter))
	}
	return assembler.NewAssembler(identity, m.retriever, m.store, append(base, opts...)...)
}

// NewAgent creates an agent with its own assembler and ingestor.
// Close the Memory after the agent is done; the ingestor is released with
// the returned function.
func (m *Memory) NewAgent(opts ...agent.Option) (*agent.Agent, func(), error) {
	asm, err := m.NewAssembler()
	if err != nil {
		return nil, nil, err
	}
	ingestor, err := m.NewIngestor()
	if err != nil {
		return nil, nil, err
	}
	base := []agent.Option{
		agent.WithIngestor(ingestor, m.NewFetcher()),
		agent.WithLogger(m.logger),
	}
	if m.chat != nil {
		base = append(base, agent.WithChatModel(m.chat))
	}
	a, err := agent.New(m.store, m.embedder, m.retriever, asm, append(base, opts...)...)
	if err != nil {
		ingestor.Release()
		return nil, nil, err
	}
	return a, ingestor.Release, nil
}

// Close releases the embedder, then the store, then the backend.
func (m *Memory) Close() error {
	if m.embedder != nil {
		closeEmbedder(m.embedder, m.logger)
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Error("error closing store", "err", err)
			return err
		}
	}
	if m.backend != nil {
		if err := m.backend.Close(); err != nil {
			m.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}
