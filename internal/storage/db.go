package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RBarbieri13/decant/internal/core"
)

// Store is the SQLite-backed node store. Most multi-statement mutations
// run inside a transaction (spec.md §5 "Shared resources"); UpdateNode's
// row update and its key-concept replacement are separate statements.
type Store struct {
	db     *sql.DB
	logger core.Logger

	treeMu    sync.RWMutex
	treeCache map[HierarchyType]*cachedTree
}

type cachedTree struct {
	roots []*TreeNode
	byID  map[string]*TreeNode
}

// Open creates the database file's parent directory if needed, opens the
// SQLite connection with foreign keys on and WAL journal mode, and applies
// pending migrations before returning. A single writer connection is kept
// (SetMaxOpenConns(1)) so writes serialize through WAL while reads of a
// separate read-only handle would proceed concurrently; a single pooled
// handle is simplest for the scale this core targets (spec.md §5).
func Open(path string, logger core.ComponentAwareLogger) (*Store, error) {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, core.NewError("storage.Open", core.KindDatabaseError, "create database directory", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, core.NewError("storage.Open", core.KindDatabaseError, "open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, core.NewError("storage.Open", core.KindDatabaseError, "apply migrations", err)
	}

	s := &Store{db: db, logger: logger.WithComponent("decant/storage"), treeCache: make(map[HierarchyType]*cachedTree)}
	if err := s.seedTaxonomyIfEmpty(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive, used by the HTTP
// surface's readiness check (spec.md §6 "/health/ready").
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RollbackMigration reverses a single applied migration by name; it is an
// operator action (spec.md §4.2), never called from the normal Open path.
func (s *Store) RollbackMigration(name string) error {
	return RollbackMigration(s.db, name)
}

// invalidateTree drops the cached tree for view; called by any mutation
// that changes hierarchy codes (spec.md §4.2).
func (s *Store) invalidateTree(view HierarchyType) {
	s.treeMu.Lock()
	delete(s.treeCache, view)
	s.treeMu.Unlock()
}

// invalidateAllTrees drops every cached tree; used by batch mutations
// (spec.md §4.2 "a batch mutation may invalidate the whole tree instead").
func (s *Store) invalidateAllTrees() {
	s.treeMu.Lock()
	s.treeCache = make(map[HierarchyType]*cachedTree)
	s.treeMu.Unlock()
}
