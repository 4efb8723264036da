package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one ordered schema step, applied inside its own transaction.
// Modeled as explicit Go structs (closer to core.Config's struct-driven
// style) rather than beads's bare embedded SQL string, per SPEC_FULL.md §4.2.
type Migration struct {
	Name string
	Up   string
	Down string
}

// migrations is the single ordered list; a failure mid-migration aborts
// without recording (spec.md §4.2).
var migrations = []Migration{
	{
		Name: "0001_init",
		Up: `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	source_domain TEXT NOT NULL DEFAULT '',
	company TEXT DEFAULT '',
	phrase_description TEXT DEFAULT '',
	short_description TEXT DEFAULT '',
	ai_summary TEXT DEFAULT '',
	logo_url TEXT DEFAULT '',
	thumbnail_url TEXT DEFAULT '',
	extracted_fields TEXT NOT NULL DEFAULT '{}',
	metadata_tags TEXT NOT NULL DEFAULT '[]',
	segment TEXT DEFAULT '',
	category TEXT DEFAULT '',
	content_type TEXT DEFAULT '',
	function_parent_id TEXT,
	function_hierarchy_code TEXT,
	organization_parent_id TEXT,
	organization_hierarchy_code TEXT,
	has_complete_metadata INTEGER NOT NULL DEFAULT 0,
	import_source TEXT DEFAULT 'manual',
	is_deleted INTEGER NOT NULL DEFAULT 0,
	date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	date_modified DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_url_live ON nodes(url) WHERE is_deleted = 0;
CREATE INDEX IF NOT EXISTS idx_nodes_function_parent ON nodes(function_parent_id, date_added DESC);
CREATE INDEX IF NOT EXISTS idx_nodes_organization_parent ON nodes(organization_parent_id, date_added DESC);
CREATE INDEX IF NOT EXISTS idx_nodes_function_code ON nodes(function_hierarchy_code);
CREATE INDEX IF NOT EXISTS idx_nodes_organization_code ON nodes(organization_hierarchy_code);
CREATE INDEX IF NOT EXISTS idx_nodes_deleted ON nodes(is_deleted);
CREATE INDEX IF NOT EXISTS idx_nodes_segment_category_type ON nodes(segment, category, content_type);
CREATE INDEX IF NOT EXISTS idx_nodes_has_complete_metadata ON nodes(has_complete_metadata);

CREATE TABLE IF NOT EXISTS key_concepts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	concept TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE(node_id, concept)
);
CREATE INDEX IF NOT EXISTS idx_key_concepts_node ON key_concepts(node_id);

CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
	title, source_domain, company, phrase_description, short_description, ai_summary,
	content='nodes', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS nodes_fts_ai AFTER INSERT ON nodes BEGIN
	INSERT INTO nodes_fts(rowid, title, source_domain, company, phrase_description, short_description, ai_summary)
	VALUES (new.rowid, new.title, new.source_domain, new.company, new.phrase_description, new.short_description, new.ai_summary);
END;
CREATE TRIGGER IF NOT EXISTS nodes_fts_ad AFTER DELETE ON nodes BEGIN
	INSERT INTO nodes_fts(nodes_fts, rowid, title, source_domain, company, phrase_description, short_description, ai_summary)
	VALUES ('delete', old.rowid, old.title, old.source_domain, old.company, old.phrase_description, old.short_description, old.ai_summary);
END;
CREATE TRIGGER IF NOT EXISTS nodes_fts_au AFTER UPDATE ON nodes BEGIN
	INSERT INTO nodes_fts(nodes_fts, rowid, title, source_domain, company, phrase_description, short_description, ai_summary)
	VALUES ('delete', old.rowid, old.title, old.source_domain, old.company, old.phrase_description, old.short_description, old.ai_summary);
	INSERT INTO nodes_fts(rowid, title, source_domain, company, phrase_description, short_description, ai_summary)
	VALUES (new.rowid, new.title, new.source_domain, new.company, new.phrase_description, new.short_description, new.ai_summary);
END;

CREATE TABLE IF NOT EXISTS segments (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '#888888'
);

CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '#888888'
);

CREATE TABLE IF NOT EXISTS metadata_code_registry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	code TEXT NOT NULL,
	display_name TEXT NOT NULL,
	description TEXT DEFAULT '',
	usage_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(type, code)
);

CREATE TABLE IF NOT EXISTS node_metadata (
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	registry_id INTEGER NOT NULL REFERENCES metadata_code_registry(id) ON DELETE CASCADE,
	confidence REAL NOT NULL DEFAULT 1.0,
	source TEXT NOT NULL DEFAULT 'ai',
	PRIMARY KEY (node_id, registry_id)
);
CREATE INDEX IF NOT EXISTS idx_node_metadata_registry ON node_metadata(registry_id);

CREATE TABLE IF NOT EXISTS node_similarity (
	node_a_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	node_b_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	score REAL NOT NULL,
	method TEXT NOT NULL DEFAULT 'jaccard_weighted',
	computed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (node_a_id, node_b_id),
	CHECK (node_a_id < node_b_id)
);
CREATE INDEX IF NOT EXISTS idx_node_similarity_b ON node_similarity(node_b_id);
CREATE INDEX IF NOT EXISTS idx_node_similarity_score ON node_similarity(score DESC);

CREATE TABLE IF NOT EXISTS hierarchy_code_changes (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	change_type TEXT NOT NULL,
	hierarchy_type TEXT NOT NULL,
	trigger TEXT NOT NULL,
	old_code TEXT,
	new_code TEXT,
	related_node_id TEXT,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_hierarchy_changes_node ON hierarchy_code_changes(node_id);
`,
		Down: `
DROP TABLE IF EXISTS hierarchy_code_changes;
DROP TABLE IF EXISTS node_similarity;
DROP TABLE IF EXISTS node_metadata;
DROP TABLE IF EXISTS metadata_code_registry;
DROP TABLE IF EXISTS organizations;
DROP TABLE IF EXISTS segments;
DROP TRIGGER IF EXISTS nodes_fts_au;
DROP TRIGGER IF EXISTS nodes_fts_ad;
DROP TRIGGER IF EXISTS nodes_fts_ai;
DROP TABLE IF EXISTS nodes_fts;
DROP TABLE IF EXISTS key_concepts;
DROP TABLE IF EXISTS nodes;
`,
	},
}

// applyMigrations runs every pending migration in order, each inside its
// own transaction, recording the name into _migrations only on success.
// A failure aborts without recording (spec.md §4.2).
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query(`SELECT name FROM _migrations`)
	if err != nil {
		return fmt.Errorf("query _migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan _migrations: %w", err)
		}
		applied[name] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		if err := applyOne(db, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func applyOne(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO _migrations (name, applied_at) VALUES (?, ?)`, m.Name, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// RollbackMigration reverses migration name's Down script inside its own
// transaction, un-recording it from _migrations on success. Refused if
// name was never applied, or if any migration ordered after it in the
// migrations list is still applied (spec.md §4.2: "Rollback of migration
// m is refused if any later migration is applied").
func RollbackMigration(db *sql.DB, name string) error {
	idx := -1
	for i, m := range migrations {
		if m.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("rollback migration %s: unknown migration", name)
	}

	ok, err := isApplied(db, name)
	if err != nil {
		return fmt.Errorf("rollback migration %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("rollback migration %s: not applied", name)
	}

	for _, later := range migrations[idx+1:] {
		laterApplied, err := isApplied(db, later.Name)
		if err != nil {
			return fmt.Errorf("rollback migration %s: check %s: %w", name, later.Name, err)
		}
		if laterApplied {
			return fmt.Errorf("rollback migration %s: refused, later migration %s is still applied", name, later.Name)
		}
	}

	m := migrations[idx]
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Down); err != nil {
		return fmt.Errorf("rollback migration %s: %w", name, err)
	}
	if _, err := tx.Exec(`DELETE FROM _migrations WHERE name = ?`, name); err != nil {
		return fmt.Errorf("rollback migration %s: %w", name, err)
	}
	return tx.Commit()
}

func isApplied(db *sql.DB, name string) (bool, error) {
	var found int
	err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
