package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	defaultSequenceBandwidth = 100
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendConfig)

type backendConfig struct {
	inMemory   bool
	syncWrites bool
	logger     *slog.Logger
}

// InMemory keeps the database in memory; the path is ignored.
func InMemory() BackendOption {
	return func(c *backendConfig) {
		c.inMemory = true
	}
}

// WithSyncWrites controls whether every commit is fsynced. Default true.
func WithSyncWrites(sync bool) BackendOption {
	return func(c *backendConfig) {
		c.syncWrites = sync
	}
}

// WithBackendLogger routes badger's own log output through logger.
// Default is slog.Default().
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(c *backendConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, opts ...BackendOption) (*Backend, error) {
	cfg := backendConfig{syncWrites: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var bopts badger.Options
	if cfg.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(filePath).WithSyncWrites(cfg.syncWrites)
	}

	logger := cfg.logger.With("component", "badger")
	bopts.Logger = &badgerLoggerAdapter{logger: logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return os.MkdirAll(filePath, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it when fn
// returns nil. Badger rejects the commit with badger.ErrConflict when a
// concurrent transaction touched the same keys.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}

// GetSequence returns a BadgerDB sequence for generating sequential IDs.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}
