package storage

import (
	"context"

	"github.com/RBarbieri13/decant/internal/core"
)

// MetadataEntry is one entry of the set passed to SetNodeMetadata.
type MetadataEntry struct {
	Type       MetadataType
	Code       string
	DisplayName string
	Confidence float64
	Source     MetadataSource
}

// SetNodeMetadata replaces the node's metadata set atomically: delete
// existing rows, insert new ones, resolving each (type, code) to a
// registry id (inserting into the registry if missing, with usage_count
// incremented). All mutations go through a transaction boundary
// (spec.md §4.2).
func (s *Store) SetNodeMetadata(ctx context.Context, nodeID string, entries []MetadataEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_metadata WHERE node_id = ?`, nodeID); err != nil {
		return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "delete existing metadata", err)
	}

	for _, e := range entries {
		var registryID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM metadata_code_registry WHERE type = ? AND code = ?`, e.Type, e.Code).Scan(&registryID)
		if err != nil {
			displayName := e.DisplayName
			if displayName == "" {
				displayName = e.Code
			}
			res, insErr := tx.ExecContext(ctx, `INSERT INTO metadata_code_registry (type, code, display_name, usage_count) VALUES (?, ?, ?, 1)`,
				e.Type, e.Code, displayName)
			if insErr != nil {
				return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "insert registry entry", insErr)
			}
			registryID, _ = res.LastInsertId()
		} else {
			if _, err := tx.ExecContext(ctx, `UPDATE metadata_code_registry SET usage_count = usage_count + 1 WHERE id = ?`, registryID); err != nil {
				return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "increment usage count", err)
			}
		}

		confidence := e.Confidence
		if confidence == 0 {
			confidence = 1.0
		}
		source := e.Source
		if source == "" {
			source = SourceAI
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO node_metadata (node_id, registry_id, confidence, source) VALUES (?, ?, ?, ?)`,
			nodeID, registryID, confidence, source); err != nil {
			return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "insert node metadata", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("storage.SetNodeMetadata", core.KindDatabaseError, "commit transaction", err)
	}
	return nil
}

// GetNodeMetadata returns the node's current metadata set, joined with the
// registry for type/code.
func (s *Store) GetNodeMetadata(ctx context.Context, nodeID string) ([]NodeMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT nm.node_id, nm.registry_id, r.type, r.code, nm.confidence, nm.source
		FROM node_metadata nm JOIN metadata_code_registry r ON r.id = nm.registry_id
		WHERE nm.node_id = ?`, nodeID)
	if err != nil {
		return nil, core.NewError("storage.GetNodeMetadata", core.KindDatabaseError, "query node metadata", err)
	}
	defer rows.Close()

	var out []NodeMetadata
	for rows.Next() {
		var m NodeMetadata
		if err := rows.Scan(&m.NodeID, &m.RegistryID, &m.Type, &m.Code, &m.Confidence, &m.Source); err != nil {
			return nil, core.NewError("storage.GetNodeMetadata", core.KindDatabaseError, "scan node metadata", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
