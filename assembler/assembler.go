package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/search"
)

// MemoryHeader introduces the memory layer.
const MemoryHeader = "Relevant memories from previous conversations:"

// Searcher ranks memories for the memory layer.
type Searcher interface {
	SemanticSearch(ctx context.Context, query string, k int, opts ...search.SearchOption) ([]*core.SearchResult, error)
}

// TurnSource supplies recent conversation turns in chronological order.
type TurnSource interface {
	FetchRecent(ctx context.Context, n int) ([]*core.ConversationTurn, error)
}

// Budget bounds the context, in tokens.
type Budget struct {
	SearchK      int // memories requested from the searcher
	RecentN      int // turns requested from the store
	Memories     int // memory layer budget
	Recent       int // recent-turns layer budget
	Ceiling      int // all three layers together
	SnippetChars int // content shown per memory
}

// DefaultBudget returns the standard context bounds.
func DefaultBudget() Budget {
	return Budget{
		SearchK:      5,
		RecentN:      15,
		Memories:     500,
		Recent:       2000,
		Ceiling:      3000,
		SnippetChars: DefaultSnippetChars,
	}
}

// Validate checks every bound is positive.
func (b Budget) Validate() error {
	for name, v := range map[string]int{
		"search k": b.SearchK, "recent n": b.RecentN, "memories": b.Memories,
		"recent": b.Recent, "ceiling": b.Ceiling, "snippet chars": b.SnippetChars,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be greater than 0, got %d", ErrInvalidBudget, name, v)
		}
	}
	return nil
}

// Assembler builds a Context for each user input.
type Assembler struct {
	identity       string
	identityTokens int
	searcher       Searcher
	turns          TurnSource
	counter        TokenCounter
	budget         Budget
	logger         *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithBudget replaces the default budget.
func WithBudget(b Budget) Option {
	return func(a *Assembler) error {
		if err := b.Validate(); err != nil {
			return err
		}
		a.budget = b
		return nil
	}
}

// WithTokenCounter replaces the default HeuristicCounter.
func WithTokenCounter(c TokenCounter) Option {
	return func(a *Assembler) error {
		if c != nil {
			a.counter = c
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "assembler")
		return nil
	}
}

// NewAssembler creates an assembler. The identity is fixed for the lifetime
// of the assembler and must fit within the ceiling on its own.
func NewAssembler(identity string, searcher Searcher, turns TurnSource, opts ...Option) (*Assembler, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if turns == nil {
		return nil, ErrTurnsRequired
	}
	if strings.TrimSpace(identity) == "" {
		identity = DefaultIdentity
	}

	a := &Assembler{
		identity: identity,
		searcher: searcher,
		turns:    turns,
		counter:  HeuristicCounter{},
		budget:   DefaultBudget(),
		logger:   slog.Default().With("component", "assembler"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	a.identityTokens = a.counter.CountTokens(identity)
	if a.identityTokens > a.budget.Ceiling {
		return nil, fmt.Errorf("%w: %d tokens, ceiling %d", ErrIdentityTooLarge, a.identityTokens, a.budget.Ceiling)
	}
	return a, nil
}

// Identity returns the identity layer.
func (a *Assembler) Identity() string {
	return a.identity
}

// Budget returns the active budget.
func (a *Assembler) Budget() Budget {
	return a.budget
}

// Tokens reports the size of each layer.
type Tokens struct {
	Identity int
	Memories int
	Recent   int
}

// Total is the assembled size of all three layers.
func (t Tokens) Total() int {
	return t.Identity + t.Memories + t.Recent
}

// Context is the assembled prompt for one model call.
type Context struct {
	Identity string
	// Memories are the kept search results, best first.
	Memories []*core.SearchResult
	// Turns are the kept recent turns, oldest first.
	Turns  []*core.ConversationTurn
	Input  string
	Tokens Tokens

	snippetChars int
}

// MemoryBlock renders the memory layer, or "" when it is empty.
func (c *Context) MemoryBlock() string {
	return memoryBlock(c.Memories, c.snippetChars)
}

// System returns the system prompt: the identity followed by the memory layer.
func (c *Context) System() string {
	if block := c.MemoryBlock(); block != "" {
		return c.Identity + "\n\n" + block
	}
	return c.Identity
}

// Messages returns the recent turns followed by the user input.
func (c *Context) Messages() []ai.Message {
	msgs := make([]ai.Message, 0, len(c.Turns)+1)
	for _, turn := range c.Turns {
		msgs = append(msgs, ai.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(msgs, ai.Message{Role: core.RoleUser, Content: c.Input})
}

// Render returns the whole context as labelled plain text.
func (c *Context) Render() string {
	var sb strings.Builder
	sb.WriteString("== system ==\n")
	sb.WriteString(c.System())
	sb.WriteString("\n== messages ==\n")
	for _, msg := range c.Messages() {
		sb.WriteString(msg.Role.String())
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Build assembles the context for input. Search and storage failures are
// returned; a missing embedder only changes how memories are ranked.
func (a *Assembler) Build(ctx context.Context, input string) (*Context, error) {
	results, err := a.searcher.SemanticSearch(ctx, input, a.budget.SearchK)
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}
	turns, err := a.turns.FetchRecent(ctx, a.budget.RecentN)
	if err != nil {
		return nil, fmt.Errorf("fetch recent turns: %w", err)
	}

	c := &Context{
		Identity:     a.identity,
		Input:        input,
		snippetChars: a.budget.SnippetChars,
	}

	// Memories: drop lowest-ranked first.
	memTokens := a.memoryTokens(results)
	for len(results) > 0 && memTokens > a.budget.Memories {
		results = results[:len(results)-1]
		memTokens = a.memoryTokens(results)
	}

	// Recent turns: drop oldest first. The newest turn is cut down, not dropped.
	turnTokens := a.turnTokens(turns)
	for len(turns) > 1 && turnTokens > a.budget.Recent {
		turns = turns[1:]
		turnTokens = a.turnTokens(turns)
	}
	if len(turns) == 1 && turnTokens > a.budget.Recent {
		turns = a.shrinkNewest(turns, a.budget.Recent)
		turnTokens = a.turnTokens(turns)
	}

	// Ceiling: older turns give way first, then the newest turn is cut
	// down, then memories go lowest-ranked first.
	for a.identityTokens+memTokens+turnTokens > a.budget.Ceiling {
		room := a.budget.Ceiling - a.identityTokens - memTokens
		switch {
		case len(turns) > 1:
			turns = turns[1:]
			turnTokens = a.turnTokens(turns)
		case len(turns) == 1 && a.fitsNewest(turns[0], room):
			turns = a.shrinkNewest(turns, room)
			turnTokens = a.turnTokens(turns)
		case len(results) > 0:
			results = results[:len(results)-1]
			memTokens = a.memoryTokens(results)
		case len(turns) == 1:
			turns = nil
			turnTokens = 0
		default:
			// Unreachable: NewAssembler rejects an identity above the ceiling.
			return nil, ErrIdentityTooLarge
		}
	}

	c.Memories = results
	c.Turns = turns
	c.Tokens = Tokens{Identity: a.identityTokens, Memories: memTokens, Recent: turnTokens}

	a.logger.Debug("context assembled",
		"memories", len(results), "turns", len(turns),
		"identity_tokens", c.Tokens.Identity, "memory_tokens", memTokens,
		"recent_tokens", turnTokens, "total_tokens", c.Tokens.Total())
	return c, nil
}

func (a *Assembler) memoryTokens(results []*core.SearchResult) int {
	return a.counter.CountTokens(memoryBlock(results, a.budget.SnippetChars))
}

func (a *Assembler) turnTokens(turns []*core.ConversationTurn) int {
	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = renderTurn(turn)
	}
	return a.counter.CountTokens(joinLines(lines))
}

// fitsNewest reports whether at least the first word of turn fits in limit.
func (a *Assembler) fitsNewest(turn *core.ConversationTurn, limit int) bool {
	ends := wordEnds(turn.Content)
	return len(ends) > 0 && a.prefixTokens(turn, ends[0]) <= limit
}

// shrinkNewest cuts the single remaining turn to the longest word prefix
// that fits in limit. It returns nil when not even one word fits.
func (a *Assembler) shrinkNewest(turns []*core.ConversationTurn, limit int) []*core.ConversationTurn {
	turn := turns[0]
	ends := wordEnds(turn.Content)
	n := sort.Search(len(ends), func(i int) bool {
		return a.prefixTokens(turn, ends[i]) > limit
	})
	if n == 0 {
		a.logger.Debug("newest turn dropped", "id", turn.ID, "limit", limit)
		return nil
	}
	cut := *turn
	cut.Content = turn.Content[:ends[n-1]]
	if n < len(ends) {
		a.logger.Debug("newest turn truncated", "id", turn.ID, "words", n, "of", len(ends))
	}
	return []*core.ConversationTurn{&cut}
}

func (a *Assembler) prefixTokens(turn *core.ConversationTurn, end int) int {
	cut := *turn
	cut.Content = turn.Content[:end]
	return a.turnTokens([]*core.ConversationTurn{&cut})
}

// wordEnds returns the byte offset just past each whitespace-separated word.
func wordEnds(s string) []int {
	var ends []int
	inWord := false
	for i, r := range s {
		switch {
		case unicode.IsSpace(r):
			if inWord {
				ends = append(ends, i)
			}
			inWord = false
		default:
			inWord = true
		}
	}
	if inWord {
		ends = append(ends, len(s))
	}
	return ends
}

func memoryBlock(results []*core.SearchResult, snippetChars int) string {
	if len(results) == 0 {
		return ""
	}
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, MemoryHeader)
	for _, r := range results {
		lines = append(lines, Snippet(r.Record, snippetChars))
	}
	return joinLines(lines)
}
