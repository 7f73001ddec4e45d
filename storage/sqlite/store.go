// Package sqlite implements storage.Store on SQLite.
//
// The layout mirrors the logical model directly: a memories table, a
// conversation table and a memory_vectors table keyed by memories.id.
// Writes go through a single connection; reads use a separate pool so they
// proceed concurrently under WAL.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

const embedderMetaKey = "embedder"

// Store implements storage.Store on SQLite.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	logger *slog.Logger

	mu         sync.Mutex
	lastMemTS  time.Time
	lastTurnTS time.Time
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger. Nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "sqlite-store")
		return nil
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
func Open(path string, opts ...Option) (storage.Store, error) {
	return open(path, opts...)
}

func open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default().With("component", "sqlite-store")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	writer, err := openDB(path)
	if err != nil {
		return nil, err
	}
	// SQLite only supports one writer at a time
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)

	if err := applySchema(writer); err != nil {
		writer.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", core.ErrStorageFailure, err)
	}

	reader, err := openDB(path)
	if err != nil {
		writer.Close()
		return nil, err
	}

	s.writer = writer
	s.reader = reader
	if s.lastMemTS, err = s.maxTimestamp("memories"); err != nil {
		s.Close()
		return nil, err
	}
	if s.lastTurnTS, err = s.maxTimestamp("conversation"); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", core.ErrStorageFailure, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect to database: %w", core.ErrStorageFailure, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply pragmas: %w", core.ErrStorageFailure, err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	var errs []error
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, core.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorageFailure, op, err)
}

func (s *Store) maxTimestamp(table string) (time.Time, error) {
	var micros sql.NullInt64
	if err := s.reader.QueryRow("SELECT MAX(timestamp) FROM " + table).Scan(&micros); err != nil {
		return time.Time{}, storageErr("read clock", err)
	}
	if !micros.Valid {
		return time.Time{}, nil
	}
	return time.UnixMicro(micros.Int64).UTC(), nil
}

// Insert writes the memory row and its vector row in one transaction.
func (s *Store) Insert(ctx context.Context, record *core.MemoryRecord) (*core.MemoryRecord, error) {
	if err := core.ValidateMemoryRecord(record); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	stored.Timestamp = storage.NextTimestamp(s.lastMemTS)
	if !stored.HasEmbedding() {
		stored.EmbedderName = ""
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin insert", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO memories (content, role, source, timestamp) VALUES (?, ?, ?, ?)`,
		stored.Content, stored.Role.String(), stored.Source, stored.Timestamp.UnixMicro())
	if err != nil {
		return nil, storageErr("insert memory", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert memory", err)
	}
	stored.ID = core.ID(id)

	if stored.HasEmbedding() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memory_vectors (memory_id, embedder, dims, embedding) VALUES (?, ?, ?, ?)`,
			id, stored.EmbedderName, len(stored.Embedding), storage.EncodeVector(stored.Embedding))
		if err != nil {
			return nil, storageErr("insert vector", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit memory", err)
	}

	s.lastMemTS = stored.Timestamp
	s.logger.Debug("inserted memory", "id", stored.ID, "role", stored.Role, "source", stored.Source)
	return &stored, nil
}

// InsertTurn writes a conversation row.
func (s *Store) InsertTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error) {
	if err := core.ValidateConversationTurn(turn); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *turn
	stored.Timestamp = storage.NextTimestamp(s.lastTurnTS)

	res, err := s.writer.ExecContext(ctx,
		`INSERT INTO conversation (role, content, timestamp) VALUES (?, ?, ?)`,
		stored.Role.String(), stored.Content, stored.Timestamp.UnixMicro())
	if err != nil {
		return nil, storageErr("insert turn", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert turn", err)
	}
	stored.ID = core.ID(id)

	s.lastTurnTS = stored.Timestamp
	return &stored, nil
}

// FetchRecent selects the newest n turns and returns them oldest first.
func (s *Store) FetchRecent(ctx context.Context, n int) ([]*core.ConversationTurn, error) {
	results := []*core.ConversationTurn{}
	if n <= 0 {
		return results, nil
	}

	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM conversation
			ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, n)
	if err != nil {
		return nil, storageErr("fetch recent turns", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			role    string
			content string
			micros  int64
		)
		if err := rows.Scan(&id, &role, &content, &micros); err != nil {
			return nil, storageErr("scan turn", err)
		}
		parsed, err := core.ParseRole(role)
		if err != nil {
			return nil, storageErr("scan turn", err)
		}
		results = append(results, &core.ConversationTurn{
			ID:        core.ID(id),
			Role:      parsed,
			Content:   content,
			Timestamp: time.UnixMicro(micros).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("fetch recent turns", err)
	}
	return results, nil
}

const (
	memoryColumns   = `m.id, m.content, m.role, m.source, m.timestamp, v.embedder, v.embedding`
	contentColumns  = `m.id, m.content, m.role, m.source, m.timestamp, NULL, NULL`
	vectorJoin      = ` JOIN memory_vectors v ON v.memory_id = m.id`
	optionalVectors = ` LEFT JOIN memory_vectors v ON v.memory_id = m.id`
)

// Candidates selects memories in id order. Vector mode joins the vector table.
func (s *Store) Candidates(ctx context.Context, mode storage.Mode, filter storage.Filter) ([]*core.MemoryRecord, error) {
	var from string
	switch mode {
	case storage.ModeVector:
		from = `SELECT ` + memoryColumns + ` FROM memories m` + vectorJoin
	case storage.ModeLexical:
		from = `SELECT ` + contentColumns + ` FROM memories m`
	default:
		return nil, fmt.Errorf("%w: mode %d", storage.ErrInvalidQuery, mode)
	}

	where, args := filterClause(filter)
	return s.queryMemories(ctx, "scan candidates", from+where+` ORDER BY m.id ASC`, args...)
}

func filterClause(filter storage.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Role != 0 {
		conds = append(conds, "m.role = ?")
		args = append(args, filter.Role.String())
	}
	if filter.Source != "" {
		conds = append(conds, "m.source = ?")
		args = append(args, filter.Source)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) queryMemories(ctx context.Context, op, query string, args ...any) ([]*core.MemoryRecord, error) {
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	results := []*core.MemoryRecord{}
	for rows.Next() {
		record, err := scanMemory(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*core.MemoryRecord, error) {
	var (
		id       int64
		content  string
		role     string
		source   string
		micros   int64
		embedder sql.NullString
		blob     []byte
	)
	if err := row.Scan(&id, &content, &role, &source, &micros, &embedder, &blob); err != nil {
		return nil, err
	}
	parsed, err := core.ParseRole(role)
	if err != nil {
		return nil, err
	}
	record := &core.MemoryRecord{
		ID:           core.ID(id),
		Content:      content,
		Role:         parsed,
		Source:       source,
		Timestamp:    time.UnixMicro(micros).UTC(),
		EmbedderName: embedder.String,
	}
	if len(blob) > 0 {
		if record.Embedding, err = storage.DecodeVector(blob); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// Get retrieves a memory with its embedding.
func (s *Store) Get(ctx context.Context, id core.ID) (*core.MemoryRecord, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m`+optionalVectors+` WHERE m.id = ?`, int64(id))
	record, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}
	return record, nil
}

// BySource lists memories of one source and role, newest first.
func (s *Store) BySource(ctx context.Context, source string, role core.Role) ([]*core.MemoryRecord, error) {
	query := `SELECT ` + contentColumns + ` FROM memories m WHERE m.source = ?`
	args := []any{source}
	if role != 0 {
		query += ` AND m.role = ?`
		args = append(args, role.String())
	}
	query += ` ORDER BY m.timestamp DESC, m.id DESC`
	return s.queryMemories(ctx, "list by source", query, args...)
}

// Sources aggregates memories of a role by source.
func (s *Store) Sources(ctx context.Context, role core.Role) ([]storage.SourceCount, error) {
	where, args := filterClause(storage.Filter{Role: role})
	rows, err := s.reader.QueryContext(ctx, `
		SELECT m.source, COUNT(*), MAX(m.timestamp), MAX(m.id)
		FROM memories m`+where+`
		GROUP BY m.source`, args...)
	if err != nil {
		return nil, storageErr("aggregate sources", err)
	}
	defer rows.Close()

	counts := map[string]*storage.SourceCount{}
	for rows.Next() {
		var (
			sc     storage.SourceCount
			micros int64
			maxID  int64
		)
		if err := rows.Scan(&sc.Source, &sc.Count, &micros, &maxID); err != nil {
			return nil, storageErr("aggregate sources", err)
		}
		sc.Latest = time.UnixMicro(micros).UTC()
		sc.LatestID = core.ID(maxID)
		counts[sc.Source] = &sc
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("aggregate sources", err)
	}
	return storage.SortSourceCounts(counts), nil
}

// Stats counts rows in each table.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	err := s.reader.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM memories),
		(SELECT COUNT(*) FROM memory_vectors),
		(SELECT COUNT(*) FROM conversation)`).Scan(&stats.Memories, &stats.Vectors, &stats.Turns)
	if err != nil {
		return storage.Stats{}, storageErr("stats", err)
	}
	return stats, nil
}

// RecordEmbedder upserts the embedder metadata row and returns the previous value.
func (s *Store) RecordEmbedder(ctx context.Context, info storage.EmbedderInfo) (storage.EmbedderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous storage.EmbedderInfo
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return previous, storageErr("begin record embedder", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, embedderMetaKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return previous, storageErr("read embedder", err)
	default:
		if err := json.Unmarshal([]byte(raw), &previous); err != nil {
			return previous, storageErr("read embedder", err)
		}
	}

	if info.RecordedAt.IsZero() {
		info.RecordedAt = time.Now().UTC()
	}
	value, err := json.Marshal(info)
	if err != nil {
		return storage.EmbedderInfo{}, storageErr("record embedder", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		embedderMetaKey, string(value))
	if err != nil {
		return storage.EmbedderInfo{}, storageErr("record embedder", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.EmbedderInfo{}, storageErr("record embedder", err)
	}
	return previous, nil
}
