package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/RBarbieri13/decant/internal/core"
)

func hierarchyColumn(view HierarchyType) (codeCol, parentCol string) {
	if view == HierarchyOrganization {
		return "organization_hierarchy_code", "organization_parent_id"
	}
	return "function_hierarchy_code", "function_parent_id"
}

type treeRow struct {
	id       string
	title    string
	code     string
	parentID string
}

// GetTree picks the hierarchy column for view. If any node has a non-null
// hierarchy code, builds the tree in O(n): load rows sorted ASC by code,
// walk once maintaining a map code -> node, attach each node to the entry
// at its parent code if present, else to the root list. Nodes lacking a
// code fall back to the legacy parent-id walk. Results are cached until
// the next hierarchy mutation (spec.md §4.2).
func (s *Store) GetTree(ctx context.Context, view HierarchyType) ([]*TreeNode, error) {
	s.treeMu.RLock()
	if cached, ok := s.treeCache[view]; ok {
		s.treeMu.RUnlock()
		return cached.roots, nil
	}
	s.treeMu.RUnlock()

	rows, err := s.loadHierarchyRows(ctx, view, "")
	if err != nil {
		return nil, err
	}

	roots, byID := buildTree(rows)

	s.treeMu.Lock()
	s.treeCache[view] = &cachedTree{roots: roots, byID: byID}
	s.treeMu.Unlock()

	return roots, nil
}

// GetSubtree queries rows at exactly path plus its code-prefixed
// descendants, then reassembles by the same walk as GetTree.
func (s *Store) GetSubtree(ctx context.Context, view HierarchyType, path string) ([]*TreeNode, error) {
	rows, err := s.loadHierarchyRows(ctx, view, path)
	if err != nil {
		return nil, err
	}
	roots, _ := buildTree(rows)
	return roots, nil
}

// GetAncestryPath repeatedly strips the last segment of nodeId's code,
// collecting ancestor codes, then issues a single batched IN (...) fetch.
func (s *Store) GetAncestryPath(ctx context.Context, view HierarchyType, nodeID string) ([]*TreeNode, error) {
	codeCol, _ := hierarchyColumn(view)
	var code string
	if err := s.db.QueryRowContext(ctx, `SELECT `+codeCol+` FROM nodes WHERE id = ? AND is_deleted = 0`, nodeID).Scan(&code); err != nil {
		return nil, core.NewError("storage.GetAncestryPath", core.KindNotFound, "node not found: "+nodeID, core.ErrNotFound)
	}
	if code == "" {
		return nil, nil
	}

	var ancestorCodes []string
	for {
		idx := strings.LastIndex(code, ".")
		if idx < 0 {
			break
		}
		code = code[:idx]
		ancestorCodes = append(ancestorCodes, code)
	}
	if len(ancestorCodes) == 0 {
		return nil, nil
	}

	q := `SELECT id, title, ` + codeCol + ` FROM nodes WHERE is_deleted = 0 AND ` + codeCol + ` IN (` + placeholders(len(ancestorCodes)) + `)`
	args := make([]interface{}, len(ancestorCodes))
	for i, c := range ancestorCodes {
		args[i] = c
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.NewError("storage.GetAncestryPath", core.KindDatabaseError, "query ancestors", err)
	}
	defer rows.Close()

	byCode := make(map[string]*TreeNode)
	for rows.Next() {
		var id, title, c string
		if err := rows.Scan(&id, &title, &c); err != nil {
			return nil, core.NewError("storage.GetAncestryPath", core.KindDatabaseError, "scan ancestor", err)
		}
		byCode[c] = &TreeNode{NodeID: id, Code: c, Title: title}
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError("storage.GetAncestryPath", core.KindDatabaseError, "iterate ancestors", err)
	}

	out := make([]*TreeNode, 0, len(ancestorCodes))
	for i := len(ancestorCodes) - 1; i >= 0; i-- {
		if tn, ok := byCode[ancestorCodes[i]]; ok {
			out = append(out, tn)
		}
	}
	return out, nil
}

// MoveNode reparents a node under targetParentID within view, sets its
// hierarchy code to newCode (supplied by the caller), records a
// hierarchy_code_changes row, and invalidates the affected
// tree cache (spec.md §4.2 "any mutation that changes codes records a row
// ... and invalidates caches").
func (s *Store) MoveNode(ctx context.Context, nodeID, targetParentID string, view HierarchyType, newCode string) error {
	codeCol, parentCol := hierarchyColumn(view)

	var oldCode string
	if err := s.db.QueryRowContext(ctx, `SELECT `+codeCol+` FROM nodes WHERE id = ? AND is_deleted = 0`, nodeID).Scan(&oldCode); err != nil {
		return core.NewError("storage.MoveNode", core.KindNotFound, "node not found: "+nodeID, core.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("storage.MoveNode", core.KindDatabaseError, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET `+parentCol+` = ?, `+codeCol+` = ?, date_modified = CURRENT_TIMESTAMP WHERE id = ?`,
		nullable(targetParentID), nullable(newCode), nodeID); err != nil {
		return core.NewError("storage.MoveNode", core.KindDatabaseError, "update node hierarchy", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO hierarchy_code_changes
		(id, node_id, change_type, hierarchy_type, trigger, old_code, new_code, related_node_id, metadata, created_at)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?, ?, ?, ?, '{}', CURRENT_TIMESTAMP)`,
		nodeID, ChangeMoved, view, TriggerUserMove, nullable(oldCode), nullable(newCode), nullable(targetParentID)); err != nil {
		return core.NewError("storage.MoveNode", core.KindDatabaseError, "insert audit row", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("storage.MoveNode", core.KindDatabaseError, "commit transaction", err)
	}

	s.invalidateTree(view)
	return nil
}

// SiblingCodes returns the hierarchy codes of every non-deleted node whose
// code begins with prefix + "." (direct or deeper descendants), used by
// the differentiator to detect collisions at a prefix (spec.md §4.5).
func (s *Store) SiblingCodes(ctx context.Context, view HierarchyType, prefix string) ([]string, error) {
	codeCol, _ := hierarchyColumn(view)
	rows, err := s.db.QueryContext(ctx, `SELECT `+codeCol+` FROM nodes WHERE is_deleted = 0 AND `+codeCol+` LIKE ?`, prefix+".%")
	if err != nil {
		return nil, core.NewError("storage.SiblingCodes", core.KindDatabaseError, "query sibling codes", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, core.NewError("storage.SiblingCodes", core.KindDatabaseError, "scan sibling code", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// RecordHierarchyCodeChange inserts one append-only audit row. Callers in
// the import orchestrator and the differentiator's collision path use this
// directly rather than MoveNode/MergeNodes's built-in inserts, which cover
// only their own mutation shapes (spec.md §3, §4.5, §4.7 step 6).
func (s *Store) RecordHierarchyCodeChange(ctx context.Context, c HierarchyCodeChange) error {
	metaJSON, err := marshalJSON(c.Metadata)
	if err != nil {
		return core.NewError("storage.RecordHierarchyCodeChange", core.KindInternal, "marshal metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO hierarchy_code_changes
		(id, node_id, change_type, hierarchy_type, trigger, old_code, new_code, related_node_id, metadata, created_at)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		c.NodeID, c.ChangeType, c.HierarchyType, c.Trigger, nullable(c.OldCode), nullable(c.NewCode), nullable(c.RelatedNodeID), metaJSON)
	if err != nil {
		return core.NewError("storage.RecordHierarchyCodeChange", core.KindDatabaseError, "insert audit row", err)
	}
	return nil
}

func (s *Store) loadHierarchyRows(ctx context.Context, view HierarchyType, prefix string) ([]treeRow, error) {
	codeCol, parentCol := hierarchyColumn(view)
	query := `SELECT id, title, ` + codeCol + `, COALESCE(` + parentCol + `, '') FROM nodes WHERE is_deleted = 0`
	var args []interface{}
	if prefix != "" {
		query += ` AND (` + codeCol + ` = ? OR ` + codeCol + ` LIKE ?)`
		args = append(args, prefix, prefix+".%")
	}
	query += ` ORDER BY ` + codeCol + ` ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewError("storage.loadHierarchyRows", core.KindDatabaseError, "query hierarchy rows", err)
	}
	defer rows.Close()

	var out []treeRow
	for rows.Next() {
		var r treeRow
		var codeVal, parentVal string
		if err := rows.Scan(&r.id, &r.title, &codeVal, &parentVal); err != nil {
			return nil, core.NewError("storage.loadHierarchyRows", core.KindDatabaseError, "scan hierarchy row", err)
		}
		r.code = codeVal
		r.parentID = parentVal
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildTree implements the O(n) single-pass build from spec.md §4.2.
func buildTree(rows []treeRow) ([]*TreeNode, map[string]*TreeNode) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].code < rows[j].code })

	byCode := make(map[string]*TreeNode)
	byID := make(map[string]*TreeNode)
	var roots []*TreeNode
	var legacyFallback []treeRow

	for _, r := range rows {
		tn := &TreeNode{NodeID: r.id, Code: r.code, Title: r.title}
		byID[r.id] = tn
		if r.code == "" {
			legacyFallback = append(legacyFallback, r)
			continue
		}
		byCode[r.code] = tn

		if idx := strings.LastIndex(r.code, "."); idx >= 0 {
			parentCode := r.code[:idx]
			if parent, ok := byCode[parentCode]; ok {
				parent.Children = append(parent.Children, tn)
				continue
			}
		}
		roots = append(roots, tn)
	}

	// Nodes lacking a hierarchy code fall back to the legacy parent-id walk.
	for _, r := range legacyFallback {
		tn := byID[r.id]
		if r.parentID != "" {
			if parent, ok := byID[r.parentID]; ok {
				parent.Children = append(parent.Children, tn)
				continue
			}
		}
		roots = append(roots, tn)
	}

	return roots, byID
}
