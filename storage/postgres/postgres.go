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


// Package postgres implements the relational document store and the
// pgvector-backed vector store on a PostgreSQL server.
//
// The two stores hold separate connection pools on purpose: the vector
// store is an enrichment store with independent failure semantics, and
// it never participates in the document store's transactions.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/weavit/core"
)

type config struct {
	logger     *slog.Logger
	dimensions int
	lists      int
}

func defaultConfig() config {
	return config{
		logger:     slog.Default(),
		dimensions: 768,
		lists:      100,
	}
}

// Option configures a store constructor.
type Option func(*config)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithDimensions sets the width of the embedding column. It must match
// the embedding model's output size. Vector store only.
func WithDimensions(n int) Option {
	return func(c *config) { c.dimensions = n }
}

// WithIndexLists sets the ivfflat list count for the embedding index.
// Vector store only.
func WithIndexLists(n int) Option {
	return func(c *config) { c.lists = n }
}

// connect opens a pool and verifies the server is reachable.
func connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Postgres has no unsigned 64-bit integer, so IDs are stored as BIGINT
// with the bit pattern preserved. Values above 1<<63 appear negative in
// SQL but round-trip exactly.
func idToDB(id core.ID) int64 { return int64(id) }

func idFromDB(v int64) core.ID { return core.ID(v) }
