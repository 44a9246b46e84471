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


// Package storage provides the persistence layer for weavit.
//
// Ingested content fans out to three stores with different roles:
//
//   - DocumentStore: documents and chunks as relational rows (PostgreSQL).
//     This is the source of truth.
//   - VectorStore: chunk embeddings for similarity search (pgvector).
//   - GraphStore: the entity and relationship graph (Neo4j).
//
// A fourth component, the JobJournal (BadgerDB), persists ingestion job
// records and the sync tasks used to repair enrichment stores after a
// partial write.
//
// # Write Semantics
//
// The Coordinator owns the fan-out. The relational write happens first,
// in a single transaction: if it fails after retries the ingestion fails,
// because there is no record left to enrich. The vector and graph writes
// then run concurrently, each under its own retry policy and timeout. A
// failure there degrades the ingestion to partial and journals a
// SyncTask; the reconciliation sweep replays these until the stores
// converge. Nothing is ever rolled back, so the relational rows stay
// even while an enrichment store is missing them.
//
// # Constructor Return Type Pattern
//
// Public constructors in the backend subpackages return the interfaces
// defined here:
//
//	docs, err := postgres.NewDocumentStore(ctx, connString)  // returns storage.DocumentStore
//
// This keeps consumers decoupled from concrete backends and lets tests
// swap in fakes without modification. Internal constructors may return
// concrete types since they never leave their package.
//
// # Thread Safety
//
// All store implementations must be thread-safe and support concurrent
// access from multiple goroutines.
//
// # Context Support
//
// All store methods accept context.Context for cancellation and timeout
// support. Pass context.Background() for operations without specific
// timeout requirements.
package storage
