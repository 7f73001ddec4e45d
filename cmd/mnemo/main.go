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


package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/mnemo"
	"github.com/poiesic/mnemo/agent"
	"github.com/poiesic/mnemo/assembler"
	"github.com/poiesic/mnemo/config"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/ingestion"
	"github.com/poiesic/mnemo/search"
	"github.com/poiesic/mnemo/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mnemo",
		Usage: "Personal agent with long-term semantic memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (default: <data-dir>/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding the store, identity and skills",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a default config and identity file",
				Action: initCommand,
			},
			{
				Name:   "chat",
				Usage:  "Start an interactive session",
				Action: chatCommand,
			},
			{
				Name:      "ask",
				Usage:     "Send one message and print the reply",
				ArgsUsage: "<message>",
				Action:    askCommand,
			},
			{
				Name:      "note",
				Usage:     "Save an idea to a project",
				ArgsUsage: "<idea>",
				Action:    noteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project name",
						Value:   agent.DefaultProject,
					},
				},
			},
			{
				Name:      "recall",
				Usage:     "List a project's notes, optionally ranked by theme",
				ArgsUsage: "<project>",
				Action:    recallCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "theme",
						Aliases: []string{"t"},
						Usage:   "Rank notes against this theme",
					},
				},
			},
			{
				Name:   "notes",
				Usage:  "List note projects with counts",
				Action: notesCommand,
			},
			{
				Name:      "search",
				Usage:     "Search all memories",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   agent.SearchK,
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print how the search was ranked",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Store text documents from paths, globs or URLs",
				ArgsUsage: "<target>...",
				Action:    ingestCommand,
			},
			{
				Name:   "recent",
				Usage:  "Show the last conversation turns",
				Action: recentCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of turns",
						Value:   agent.RecentN,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show memory counts and the active embedder",
				Action: statsCommand,
			},
		},
	}
}

func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	dir := c.String("data-dir")
	if dir == "" {
		dir = config.DefaultDataDir()
	}
	return filepath.Join(dir, "config.yaml")
}

// loadConfig resolves the configuration in order: defaults, config file,
// environment, flags. It then installs the logger.
func loadConfig(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(configPath(c))
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configKey] = cfg
	return setupLogger(cfg.Logging.Level, c.App.ErrWriter)
}

func setupLogger(levelStr string, w io.Writer) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
	if w == nil {
		w = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// withAgent opens memory, builds an agent and runs fn with it.
func withAgent(c *cli.Context, fn func(ctx context.Context, a *agent.Agent) error) error {
	ctx := c.Context
	m, err := mnemo.Open(ctx, configFrom(c))
	if err != nil {
		return fmt.Errorf("failed to open memory: %w", err)
	}
	defer m.Close()

	a, release, err := m.NewAgent()
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, a)
}

// handle runs one line through the agent's command grammar and prints the result.
func handle(c *cli.Context, line string) error {
	return withAgent(c, func(ctx context.Context, a *agent.Agent) error {
		out, err := a.Handle(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, out)
		return nil
	})
}

func requireArgs(c *cli.Context, usage string) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("usage: mnemo %s %s", c.Command.Name, usage)
	}
	return text, nil
}

func initCommand(c *cli.Context) error {
	cfg := configFrom(c)
	path := configPath(c)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(c.App.Writer, "Config already exists: %s\n", path)
	} else {
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Wrote config: %s\n", path)
	}

	identity := cfg.IdentityFile()
	if _, err := os.Stat(identity); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(identity), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(identity, []byte(assembler.DefaultIdentity+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote identity: %s\n", identity)
	return nil
}

func chatCommand(c *cli.Context) error {
	return withAgent(c, func(ctx context.Context, a *agent.Agent) error {
		fmt.Fprintln(c.App.Writer, "Type 'help' for commands, 'exit' to quit.")
		scanner := bufio.NewScanner(c.App.Reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for {
			fmt.Fprint(c.App.Writer, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(c.App.Writer)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch strings.ToLower(line) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}

			out, err := a.Handle(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(c.App.Writer, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(c.App.Writer, out)
		}
	})
}

func askCommand(c *cli.Context) error {
	text, err := requireArgs(c, "<message>")
	if err != nil {
		return err
	}
	return withAgent(c, func(ctx context.Context, a *agent.Agent) error {
		reply, err := a.Respond(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, agent.FormatReply(reply))
		return nil
	})
}

func noteCommand(c *cli.Context) error {
	idea, err := requireArgs(c, "<idea>")
	if err != nil {
		return err
	}
	return handle(c, fmt.Sprintf("note: %s | %s", c.String("project"), idea))
}

func recallCommand(c *cli.Context) error {
	project, err := requireArgs(c, "<project>")
	if err != nil {
		return err
	}
	line := "recall: " + project
	if theme := c.String("theme"); theme != "" {
		line += " | " + theme
	}
	return handle(c, line)
}

func notesCommand(c *cli.Context) error {
	return handle(c, "notes")
}

func recentCommand(c *cli.Context) error {
	return handle(c, fmt.Sprintf("recent %d", c.Int("count")))
}

func statsCommand(c *cli.Context) error {
	return handle(c, "stats")
}

func searchCommand(c *cli.Context) error {
	query, err := requireArgs(c, "<query>")
	if err != nil {
		return err
	}
	return withAgent(c, func(ctx context.Context, a *agent.Agent) error {
		var opts []search.SearchOption
		if c.Bool("explain") {
			opts = append(opts, search.WithMonitor(&explainMonitor{w: c.App.ErrWriter}))
		}
		results, err := a.Search(ctx, query, c.Int("limit"), opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, agent.FormatSearchResults(query, results, time.Now()))
		return nil
	})
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("usage: mnemo ingest <target>...")
	}
	sources, err := ingestion.Expand(c.Args().Slice()...)
	if err != nil {
		return err
	}
	return withAgent(c, func(ctx context.Context, a *agent.Agent) error {
		var errs []error
		summaries := make([]core.IngestSummary, 0, len(sources))
		for _, source := range sources {
			bar := newIngestBar(c.App.ErrWriter, source)
			summary, err := a.IngestSource(ctx, source, ingestion.WithProgress(bar.update))
			bar.finish()
			summaries = append(summaries, summary)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", source, err))
			}
		}
		fmt.Fprintln(c.App.Writer, agent.FormatIngest(summaries, errors.Join(errs...)))
		return nil
	})
}

// ingestBar draws a progress bar once the chunk count of a source is known.
type ingestBar struct {
	mu     sync.Mutex
	w      io.Writer
	source string
	bar    *progressbar.ProgressBar
}

func newIngestBar(w io.Writer, source string) *ingestBar {
	if w == nil {
		w = os.Stderr
	}
	return &ingestBar{w: w, source: source}
}

func (b *ingestBar) update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Ingesting[reset] "+filepath.Base(b.source)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = b.bar.Set(done)
}

func (b *ingestBar) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(b.w)
	}
}

// explainMonitor prints each stage of a search.
type explainMonitor struct {
	w io.Writer
}

var _ search.Monitor = (*explainMonitor)(nil)

func (m *explainMonitor) Start(query string, k int) {
	fmt.Fprintf(m.w, "query: %q  k: %d\n", query, k)
}

func (m *explainMonitor) ModeChosen(mode storage.Mode, reason string) {
	if reason == "" {
		fmt.Fprintf(m.w, "mode: %s\n", mode)
		return
	}
	fmt.Fprintf(m.w, "mode: %s (%s)\n", mode, reason)
}

func (m *explainMonitor) AfterCandidateScan(n int) {
	fmt.Fprintf(m.w, "candidates: %d\n", n)
}

func (m *explainMonitor) Finish(results []*core.SearchResult) {
	for i, r := range results {
		fmt.Fprintf(m.w, "  %d. id=%d score=%.4f\n", i+1, r.Record.ID, r.Score)
	}
}
