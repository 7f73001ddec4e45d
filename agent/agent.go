package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/assembler"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/ingestion"
	"github.com/poiesic/mnemo/search"
	"github.com/poiesic/mnemo/storage"
)

const (
	// DefaultProject holds notes saved without a project.
	DefaultProject = "general"

	// ExchangeSource tags exchange memories.
	ExchangeSource = "chat"

	notePrefix = "note:"
)

// Agent orchestrates turns and memory commands.
type Agent struct {
	store     storage.Store
	embedder  ai.Embedder
	retriever *search.Retriever
	assembler *assembler.Assembler
	chat      ai.ChatModel
	ingestor  *ingestion.Ingestor
	fetcher   *ingestion.Fetcher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithChatModel sets the model used for conversational turns.
func WithChatModel(chat ai.ChatModel) Option {
	return func(a *Agent) {
		a.chat = chat
	}
}

// WithIngestor enables document ingestion.
func WithIngestor(ingestor *ingestion.Ingestor, fetcher *ingestion.Fetcher) Option {
	return func(a *Agent) {
		a.ingestor = ingestor
		a.fetcher = fetcher
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "agent")
	}
}

// WithClock overrides the time source used for relative times.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an agent.
func New(store storage.Store, embedder ai.Embedder, retriever *search.Retriever, asm *assembler.Assembler, opts ...Option) (*Agent, error) {
	switch {
	case store == nil:
		return nil, ErrStoreRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case retriever == nil:
		return nil, ErrRetrieverRequired
	case asm == nil:
		return nil, ErrAssemblerRequired
	}

	a := &Agent{
		store:     store,
		embedder:  embedder,
		retriever: retriever,
		assembler: asm,
		logger:    slog.Default().With("component", "agent"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.ingestor != nil && a.fetcher == nil {
		a.fetcher = ingestion.NewFetcher(ingestion.WithFetchLogger(a.logger))
	}
	return a, nil
}

// Reply is the outcome of one conversational turn.
type Reply struct {
	// Text is the model reply with directives removed.
	Text string
	// Notes are the notes saved from directives.
	Notes []*core.MemoryRecord
	// Context is the assembled prompt the model saw.
	Context *assembler.Context
}

// Respond runs one turn: assemble context, ask the model, then store the
// user turn, the assistant turn and the exchange memory. Nothing is stored
// when the model call fails.
func (a *Agent) Respond(ctx context.Context, input string) (*Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	if a.chat == nil {
		return nil, ErrNoChatModel
	}

	prompt, err := a.assembler.Build(ctx, input)
	if err != nil {
		return nil, err
	}
	raw, err := a.chat.Complete(ctx, prompt.System(), prompt.Messages())
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}
	text, directives := ExtractNotes(raw)

	if _, err := a.store.InsertTurn(ctx, &core.ConversationTurn{Role: core.RoleUser, Content: input}); err != nil {
		return nil, err
	}
	if text != "" {
		if _, err := a.store.InsertTurn(ctx, &core.ConversationTurn{Role: core.RoleAssistant, Content: text}); err != nil {
			return nil, err
		}
	}
	exchange := fmt.Sprintf("User: %s\nAssistant: %s", input, text)
	if _, err := a.remember(ctx, exchange, core.RoleAssistant, ExchangeSource); err != nil {
		return nil, err
	}

	reply := &Reply{Text: text, Context: prompt}
	for _, d := range directives {
		note, err := a.Note(ctx, d.Project, d.Content)
		if err != nil {
			return nil, err
		}
		reply.Notes = append(reply.Notes, note)
	}
	return reply, nil
}

// Note saves idea under project. A blank project means DefaultProject.
func (a *Agent) Note(ctx context.Context, project, idea string) (*core.MemoryRecord, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, ErrEmptyInput
	}
	return a.remember(ctx, idea, core.RoleNote, NoteSource(project))
}

// Recall lists the notes of project newest first. With a theme the notes
// are ranked against it instead, at most k of them.
func (a *Agent) Recall(ctx context.Context, project, theme string, k int) ([]*core.MemoryRecord, error) {
	source := NoteSource(project)
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return a.store.BySource(ctx, source, core.RoleNote)
	}

	results, err := a.retriever.SemanticSearch(ctx, theme, k,
		search.InScope(storage.Filter{Role: core.RoleNote, Source: source}))
	if err != nil {
		return nil, err
	}
	records := make([]*core.MemoryRecord, len(results))
	for i, r := range results {
		records[i] = r.Record
	}
	return records, nil
}

// Project is a note project with its size.
type Project struct {
	Name   string
	Count  int
	Latest time.Time
}

// Projects lists note projects, most recently active first.
func (a *Agent) Projects(ctx context.Context) ([]Project, error) {
	sources, err := a.store.Sources(ctx, core.RoleNote)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(sources))
	for _, s := range sources {
		projects = append(projects, Project{
			Name:   strings.TrimPrefix(s.Source, notePrefix),
			Count:  s.Count,
			Latest: s.Latest,
		})
	}
	return projects, nil
}

// Search ranks all memories against query.
func (a *Agent) Search(ctx context.Context, query string, k int, opts ...search.SearchOption) ([]*core.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyInput
	}
	return a.retriever.SemanticSearch(ctx, query, k, opts...)
}

// Recent returns the last n conversation turns, oldest first.
func (a *Agent) Recent(ctx context.Context, n int) ([]*core.ConversationTurn, error) {
	return a.store.FetchRecent(ctx, n)
}

// Status describes the memory store and the active embedder.
type Status struct {
	storage.Stats
	Embedder   string
	Dimensions int
}

// Status reports store sizes and the active embedder.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Stats: stats, Embedder: a.embedder.Name(), Dimensions: a.embedder.Dimensions()}, nil
}

// IngestSource loads one file or URL and ingests its text.
func (a *Agent) IngestSource(ctx context.Context, source string, opts ...ingestion.IngestOption) (core.IngestSummary, error) {
	if a.ingestor == nil {
		return core.IngestSummary{Source: source}, ErrNoIngestor
	}
	text, err := a.fetcher.Load(ctx, source)
	if err != nil {
		return core.IngestSummary{Source: source}, err
	}
	return a.ingestor.Ingest(ctx, text, source, opts...)
}

// Ingest expands targets and ingests every resulting source. A failing
// source does not stop the others; all errors are joined.
func (a *Agent) Ingest(ctx context.Context, targets ...string) ([]core.IngestSummary, error) {
	if a.ingestor == nil {
		return nil, ErrNoIngestor
	}
	sources, err := ingestion.Expand(targets...)
	if err != nil {
		return nil, err
	}

	var errs []error
	summaries := make([]core.IngestSummary, 0, len(sources))
	for _, source := range sources {
		summary, err := a.IngestSource(ctx, source)
		summaries = append(summaries, summary)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
		}
	}
	return summaries, errors.Join(errs...)
}

// remember stores content as a memory, embedding it when an embedder is
// active. An embedding failure stores the record without a vector; a
// dimension mismatch is returned.
func (a *Agent) remember(ctx context.Context, content string, role core.Role, source string) (*core.MemoryRecord, error) {
	record := &core.MemoryRecord{Content: content, Role: role, Source: source}
	if ai.Available(a.embedder) {
		vec, err := a.embedder.EmbedText(ctx, content)
		switch {
		case errors.Is(err, core.ErrDimensionMismatch):
			return nil, err
		case err != nil:
			a.logger.Warn("embedding failed, storing without vector", "source", source, "err", err)
		case len(vec) != a.embedder.Dimensions():
			return nil, &core.DimensionMismatchError{Got: len(vec), Want: a.embedder.Dimensions()}
		default:
			record.Embedding = vec
			record.EmbedderName = a.embedder.Name()
		}
	}
	return a.store.Insert(ctx, record)
}

// NoteSource returns the source tag for a note project.
func NoteSource(project string) string {
	project = strings.ToLower(strings.TrimSpace(project))
	if project == "" {
		project = DefaultProject
	}
	return notePrefix + project
}
