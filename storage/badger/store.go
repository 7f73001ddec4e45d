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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
)

// Store implements storage.Store for BadgerDB.
type Store struct {
	backend *Backend
	memSeq  *badger.Sequence
	turnSeq *badger.Sequence
	logger  *slog.Logger

	// mu serializes writers; readers never take it.
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
		s.logger = logger.With("component", "badger-store")
		return nil
	}
}

// newStore is an internal constructor that returns the concrete type.
func newStore(backend *Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	if s.memSeq, err = backend.GetSequence(memoryIDSeq); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageFailure, err)
	}
	if s.turnSeq, err = backend.GetSequence(turnIDSeq); err != nil {
		s.memSeq.Release()
		return nil, fmt.Errorf("%w: %w", core.ErrStorageFailure, err)
	}

	err = backend.View(func(tx *badger.Txn) error {
		s.lastMemTS = latestTimestamp(tx, memoryDatePrefix)
		s.lastTurnTS = latestTimestamp(tx, turnDatePrefix)
		return nil
	})
	if err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

// NewStore creates a Store on an open backend.
// The caller closes the backend after closing the store.
func NewStore(backend *Backend, opts ...Option) (storage.Store, error) {
	return newStore(backend, opts...)
}

func (s *Store) release() {
	if err := s.memSeq.Release(); err != nil {
		s.logger.Warn("error releasing memory sequence", "err", err)
	}
	if err := s.turnSeq.Release(); err != nil {
		s.logger.Warn("error releasing turn sequence", "err", err)
	}
}

// Close releases the ID sequences.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	return nil
}

// nextID draws an id from seq, skipping zero.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if id == 0 {
		if id, err = seq.Next(); err != nil {
			return 0, err
		}
	}
	return core.ID(id), nil
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrStorageFailure, storage.ErrStorageClosed)
	}
	return nil
}

func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, core.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorageFailure, op, err)
}

// Insert writes the memory row, its vector and both indexes in one transaction.
func (s *Store) Insert(ctx context.Context, record *core.MemoryRecord) (*core.MemoryRecord, error) {
	if err := core.ValidateMemoryRecord(record); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := nextID(s.memSeq)
	if err != nil {
		return nil, storageErr("allocate memory id", err)
	}
	stored := *record
	stored.ID = id
	stored.Timestamp = storage.NextTimestamp(s.lastMemTS)
	if !stored.HasEmbedding() {
		stored.EmbedderName = ""
	}

	value := storage.MarshalMemory(&stored)
	err = s.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeMemoryKey(id), value); err != nil {
			return err
		}
		if stored.HasEmbedding() {
			if err := tx.Set(makeMemoryVectorKey(id), storage.EncodeVector(stored.Embedding)); err != nil {
				return err
			}
		}
		if err := tx.Set(makeDateKey(memoryDatePrefix, stored.Timestamp, id), nil); err != nil {
			return err
		}
		return tx.Set(makeSourceKey(stored.Source, stored.Timestamp, id), nil)
	})
	if err != nil {
		return nil, storageErr("insert memory", err)
	}

	s.lastMemTS = stored.Timestamp
	s.logger.Debug("inserted memory", "id", id, "role", stored.Role, "source", stored.Source)
	return &stored, nil
}

// InsertTurn writes a conversation turn and its date index entry in one transaction.
func (s *Store) InsertTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error) {
	if err := core.ValidateConversationTurn(turn); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := nextID(s.turnSeq)
	if err != nil {
		return nil, storageErr("allocate turn id", err)
	}
	stored := *turn
	stored.ID = id
	stored.Timestamp = storage.NextTimestamp(s.lastTurnTS)

	value := storage.MarshalTurn(&stored)
	err = s.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeTurnKey(id), value); err != nil {
			return err
		}
		return tx.Set(makeDateKey(turnDatePrefix, stored.Timestamp, id), nil)
	})
	if err != nil {
		return nil, storageErr("insert turn", err)
	}

	s.lastTurnTS = stored.Timestamp
	return &stored, nil
}

// FetchRecent walks the turn date index backwards and returns the result in
// chronological order.
func (s *Store) FetchRecent(ctx context.Context, n int) ([]*core.ConversationTurn, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	results := []*core.ConversationTurn{}
	if n <= 0 {
		return results, nil
	}

	err := s.backend.View(func(tx *badger.Txn) error {
		prefix := []byte(turnDatePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefixEnd(prefix)); iter.ValidForPrefix(prefix) && len(results) < n; iter.Next() {
			id := idFromKey(iter.Item().Key())
			turn, err := readTurn(tx, id)
			if err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("fetch recent turns", err)
	}

	slices.Reverse(results)
	return results, nil
}

// Candidates scans memories in insertion order. A source filter uses the
// source index; otherwise the whole memory keyspace is read.
func (s *Store) Candidates(ctx context.Context, mode storage.Mode, filter storage.Filter) ([]*core.MemoryRecord, error) {
	if mode != storage.ModeVector && mode != storage.ModeLexical {
		return nil, fmt.Errorf("%w: mode %d", storage.ErrInvalidQuery, mode)
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var results []*core.MemoryRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		visit := func(record *core.MemoryRecord) error {
			if !filter.Matches(record) {
				return nil
			}
			if mode == storage.ModeVector {
				vec, err := readVector(tx, record.ID)
				if err != nil {
					return err
				}
				if vec == nil {
					return nil
				}
				record.Embedding = vec
			}
			results = append(results, record)
			return nil
		}

		if filter.Source != "" {
			return scanSource(tx, filter.Source, false, visit)
		}
		return scanMemories(tx, visit)
	})
	if err != nil {
		return nil, storageErr("scan candidates", err)
	}
	return results, nil
}

// Get retrieves a memory with its embedding.
func (s *Store) Get(ctx context.Context, id core.ID) (*core.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var result *core.MemoryRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readMemory(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		result.Embedding, err = readVector(tx, id)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}
	return result, nil
}

// BySource walks the source index newest first.
func (s *Store) BySource(ctx context.Context, source string, role core.Role) ([]*core.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	results := []*core.MemoryRecord{}
	filter := storage.Filter{Role: role, Source: source}
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanSource(tx, source, true, func(record *core.MemoryRecord) error {
			if filter.Matches(record) {
				results = append(results, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("list by source", err)
	}
	return results, nil
}

// Sources aggregates memories of a role by source.
func (s *Store) Sources(ctx context.Context, role core.Role) ([]storage.SourceCount, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	counts := map[string]*storage.SourceCount{}
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanMemories(tx, func(record *core.MemoryRecord) error {
			if role != 0 && record.Role != role {
				return nil
			}
			sc, ok := counts[record.Source]
			if !ok {
				sc = &storage.SourceCount{Source: record.Source}
				counts[record.Source] = sc
			}
			sc.Count++
			if record.ID > sc.LatestID {
				sc.Latest = record.Timestamp
				sc.LatestID = record.ID
			}
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("aggregate sources", err)
	}

	return storage.SortSourceCounts(counts), nil
}

// Stats counts keys in each keyspace.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	if err := s.checkOpen(); err != nil {
		return storage.Stats{}, err
	}

	var stats storage.Stats
	err := s.backend.View(func(tx *badger.Txn) error {
		stats.Memories = countPrefix(tx, memoryPrefix)
		stats.Vectors = countPrefix(tx, memoryVectorPrefix)
		stats.Turns = countPrefix(tx, turnPrefix)
		return nil
	})
	if err != nil {
		return storage.Stats{}, storageErr("stats", err)
	}
	return stats, nil
}

// RecordEmbedder stores info under the metadata key and returns the previous value.
func (s *Store) RecordEmbedder(ctx context.Context, info storage.EmbedderInfo) (storage.EmbedderInfo, error) {
	if err := s.checkOpen(); err != nil {
		return storage.EmbedderInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous storage.EmbedderInfo
	err := s.backend.Update(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(embedderMetaKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				previous, err = storage.UnmarshalEmbedderInfo(val)
				return err
			}); err != nil {
				return err
			}
		}

		if info.RecordedAt.IsZero() {
			info.RecordedAt = time.Now().UTC()
		}
		return tx.Set([]byte(embedderMetaKey), storage.MarshalEmbedderInfo(info))
	})
	if err != nil {
		return storage.EmbedderInfo{}, storageErr("record embedder", err)
	}
	return previous, nil
}

func readMemory(tx *badger.Txn, id core.ID) (*core.MemoryRecord, error) {
	item, err := tx.Get(makeMemoryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record *core.MemoryRecord
	err = item.Value(func(val []byte) error {
		record, err = storage.UnmarshalMemory(id, val)
		return err
	})
	return record, err
}

// readVector returns nil when the memory has no vector.
func readVector(tx *badger.Txn, id core.ID) ([]float32, error) {
	item, err := tx.Get(makeMemoryVectorKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var vec []float32
	err = item.Value(func(val []byte) error {
		vec, err = storage.DecodeVector(val)
		return err
	})
	return vec, err
}

func readTurn(tx *badger.Txn, id core.ID) (*core.ConversationTurn, error) {
	item, err := tx.Get(makeTurnKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var turn *core.ConversationTurn
	err = item.Value(func(val []byte) error {
		turn, err = storage.UnmarshalTurn(id, val)
		return err
	})
	return turn, err
}

// scanMemories visits every memory in id order.
func scanMemories(tx *badger.Txn, visit func(*core.MemoryRecord) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(memoryPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		id := idFromKey(item.Key())
		var record *core.MemoryRecord
		err := item.Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalMemory(id, val)
			return err
		})
		if err != nil {
			return err
		}
		if err := visit(record); err != nil {
			return err
		}
	}
	return nil
}

// scanSource visits memories sharing a source through the source index.
// Digest collisions are filtered by comparing the stored source.
func scanSource(tx *badger.Txn, source string, newestFirst bool, visit func(*core.MemoryRecord) error) error {
	prefix := makeSourcePrefix(source)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = newestFirst
	iter := tx.NewIterator(opts)
	defer iter.Close()

	start := prefix
	if newestFirst {
		start = prefixEnd(prefix)
	}
	for iter.Seek(start); iter.ValidForPrefix(prefix); iter.Next() {
		record, err := readMemory(tx, idFromKey(iter.Item().Key()))
		if err != nil {
			return err
		}
		if record == nil || record.Source != source {
			continue
		}
		if err := visit(record); err != nil {
			return err
		}
	}
	return nil
}

func countPrefix(tx *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	count := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		count++
	}
	return count
}

// latestTimestamp reads the newest entry of a date index.
func latestTimestamp(tx *badger.Txn, prefix string) time.Time {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	p := []byte(prefix)
	iter.Seek(prefixEnd(p))
	if !iter.ValidForPrefix(p) {
		return time.Time{}
	}
	return timestampFromDateKey(prefix, iter.Item().Key())
}
