package storage

import (
	"context"

	"github.com/RBarbieri13/decant/internal/core"
)

// NormalizePair orders (a, b) so the first return value is the
// lexicographically smaller id, matching the node_a_id < node_b_id
// invariant of spec.md §3. NormalizePair(a, b) = NormalizePair(b, a).
func NormalizePair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// UpsertSimilarity stores the edge (a, b) with score under method, rejecting
// self-pairs and normalizing the pair order. Call sites are expected to have
// already checked score against similarity.MinThreshold.
func (s *Store) UpsertSimilarity(ctx context.Context, nodeA, nodeB string, score float64, method string) error {
	if nodeA == nodeB {
		return core.NewError("storage.UpsertSimilarity", core.KindValidationFailed, "self-similarity is forbidden", nil)
	}
	a, b := NormalizePair(nodeA, nodeB)
	_, err := s.db.ExecContext(ctx, `INSERT INTO node_similarity (node_a_id, node_b_id, score, method, computed_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(node_a_id, node_b_id) DO UPDATE SET score = excluded.score, method = excluded.method, computed_at = CURRENT_TIMESTAMP`,
		a, b, score, method)
	if err != nil {
		return core.NewError("storage.UpsertSimilarity", core.KindDatabaseError, "upsert similarity edge", err)
	}
	return nil
}

// DeleteSimilarityFor removes every edge touching nodeID (either side).
func (s *Store) DeleteSimilarityFor(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_similarity WHERE node_a_id = ? OR node_b_id = ?`, nodeID, nodeID); err != nil {
		return core.NewError("storage.DeleteSimilarityFor", core.KindDatabaseError, "delete similarity edges", err)
	}
	return nil
}

// ClearAllSimilarity truncates the similarity table; used by recomputeAll.
func (s *Store) ClearAllSimilarity(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_similarity`); err != nil {
		return core.NewError("storage.ClearAllSimilarity", core.KindDatabaseError, "clear similarity table", err)
	}
	return nil
}

// NodeIDsWithMetadata returns every non-deleted node id that has at least
// one node_metadata row; used by recomputeAll to scope the batch.
func (s *Store) NodeIDsWithMetadata(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT n.id FROM nodes n JOIN node_metadata nm ON nm.node_id = n.id WHERE n.is_deleted = 0`)
	if err != nil {
		return nil, core.NewError("storage.NodeIDsWithMetadata", core.KindDatabaseError, "query nodes with metadata", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewError("storage.NodeIDsWithMetadata", core.KindDatabaseError, "scan node id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AllNodeIDs returns every non-deleted node id; used by computeFor to
// compare a node against the full set.
func (s *Store) AllNodeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM nodes WHERE is_deleted = 0`)
	if err != nil {
		return nil, core.NewError("storage.AllNodeIDs", core.KindDatabaseError, "query node ids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewError("storage.AllNodeIDs", core.KindDatabaseError, "scan node id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SimilarEdge is one row of a GetSimilar/FindCommonSimilar result.
type SimilarEdge struct {
	NodeID string
	Score  float64
}

// GetSimilar returns the nodes most similar to nodeId via a UNION ALL of
// edges where the node appears on either side, ordered by score DESC,
// limited (spec.md §4.6).
func (s *Store) GetSimilar(ctx context.Context, nodeID string, limit int) ([]SimilarEdge, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as "no limit"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_b_id AS other, score FROM node_similarity WHERE node_a_id = ?
		UNION ALL
		SELECT node_a_id AS other, score FROM node_similarity WHERE node_b_id = ?
		ORDER BY score DESC LIMIT ?`, nodeID, nodeID, limit)
	if err != nil {
		return nil, core.NewError("storage.GetSimilar", core.KindDatabaseError, "query similar nodes", err)
	}
	defer rows.Close()

	var out []SimilarEdge
	for rows.Next() {
		var e SimilarEdge
		if err := rows.Scan(&e.NodeID, &e.Score); err != nil {
			return nil, core.NewError("storage.GetSimilar", core.KindDatabaseError, "scan similar edge", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetMetadataCodeSet returns the (type, code) pairs and their registry type
// weights are computed by the caller (internal/similarity); this just
// returns the raw codes attached to nodeID.
func (s *Store) GetMetadataCodeSet(ctx context.Context, nodeID string) (map[MetadataType][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.type, r.code FROM node_metadata nm
		JOIN metadata_code_registry r ON r.id = nm.registry_id WHERE nm.node_id = ?`, nodeID)
	if err != nil {
		return nil, core.NewError("storage.GetMetadataCodeSet", core.KindDatabaseError, "query metadata code set", err)
	}
	defer rows.Close()

	out := make(map[MetadataType][]string)
	for rows.Next() {
		var t MetadataType
		var c string
		if err := rows.Scan(&t, &c); err != nil {
			return nil, core.NewError("storage.GetMetadataCodeSet", core.KindDatabaseError, "scan metadata code", err)
		}
		out[t] = append(out[t], c)
	}
	return out, rows.Err()
}
