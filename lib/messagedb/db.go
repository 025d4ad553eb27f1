// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config describes how to open a Messages database.
type Config struct {
	// Path is the filesystem path to chat.db.
	Path string

	// PoolSize is the number of connections to hold open. Zero means
	// a single connection, which is enough for sequential export.
	PoolSize int

	// Logger receives connection lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// DB is a read-only handle on a Messages database.
type DB struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
}

// Open opens the database at cfg.Path read-only. The file must exist:
// unlike a normal SQLite open this never creates an empty database,
// because a missing chat.db means the caller pointed at the wrong
// place and silently exporting zero messages would mask that.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("messagedb: config has no database path")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("messagedb: database %q: %w", cfg.Path, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		Flags:    sqlite.OpenReadOnly | sqlite.OpenURI,
		PrepareConn: func(conn *sqlite.Conn) error {
			// Belt and braces on top of OpenReadOnly: reject any
			// statement that would write, including implicit ones.
			return sqlitex.ExecuteTransient(conn, "PRAGMA query_only = ON;", nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messagedb: open %q: %w", cfg.Path, err)
	}

	logger.Info("opened message database", "path", cfg.Path, "pool_size", poolSize)
	return &DB{pool: pool, logger: logger}, nil
}

// Take borrows a connection from the pool. The caller must return it
// with Put. Returns an error if ctx is done before a connection frees
// up or if the pool is closed.
func (db *DB) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("messagedb: take connection: %w", err)
	}
	return conn, nil
}

// Put returns a connection obtained from Take.
func (db *DB) Put(conn *sqlite.Conn) {
	db.pool.Put(conn)
}

// Close closes all connections. Outstanding Take calls fail.
func (db *DB) Close() error {
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("messagedb: close pool: %w", err)
	}
	return nil
}
