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


// Package storage provides the storage abstraction layer for mnemo.
//
// A Store owns every persisted record: memories (the searchable corpus) and
// conversation turns (the chat transcript). Both are append-only. Records
// are never updated or deleted through this interface, and every successful
// insert is visible to reads that start after it returns.
//
// # Implementations
//
//   - storage/badger: BadgerDB keyspaces with date and source indexes
//   - storage/sqlite: SQLite with memories and conversation tables
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.Store interface:
//
//	store, err := badger.NewStore(backend)  // returns storage.Store
//
// Tests use in-memory storage:
//
//	store, backend, err := badger.NewMemoryStore()
//
// # Consistency
//
// Writes are serialized through a single writer lock inside each
// implementation. Reads run concurrently and observe a consistent snapshot.
// Every I/O failure is wrapped with core.ErrStorageFailure.
package storage
