package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RBarbieri13/decant/internal/core"
)

const nodeColumns = "id, title, url, source_domain, company, phrase_description, short_description, " +
	"ai_summary, logo_url, thumbnail_url, extracted_fields, metadata_tags, segment, category, " +
	"content_type, function_parent_id, function_hierarchy_code, organization_parent_id, " +
	"organization_hierarchy_code, has_complete_metadata, import_source, is_deleted, date_added, date_modified"

// nodeColumnsPrefixed is nodeColumns with every column qualified by "n.",
// needed when joining nodes against nodes_fts (which shares column names).
const nodeColumnsPrefixed = "n.id, n.title, n.url, n.source_domain, n.company, n.phrase_description, n.short_description, " +
	"n.ai_summary, n.logo_url, n.thumbnail_url, n.extracted_fields, n.metadata_tags, n.segment, n.category, " +
	"n.content_type, n.function_parent_id, n.function_hierarchy_code, n.organization_parent_id, " +
	"n.organization_hierarchy_code, n.has_complete_metadata, n.import_source, n.is_deleted, n.date_added, n.date_modified"

// CreateNode inserts the node and its key concepts in a single transaction,
// returning the persisted row with parsed JSON fields. Fails with
// core.KindDuplicateURL if the URL already exists among non-deleted nodes
// (spec.md §4.2).
func (s *Store) CreateNode(ctx context.Context, in CreateNodeInput) (*Node, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE url = ? AND is_deleted = 0`, in.URL).Scan(&exists); err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindDatabaseError, "check url uniqueness", err)
	}
	if exists > 0 {
		return nil, core.NewError("storage.CreateNode", core.KindDuplicateURL, "url already imported: "+in.URL, core.ErrDuplicateURL)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	extractedFields, err := marshalJSON(in.ExtractedFields)
	if err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindValidationFailed, "marshal extractedFields", err)
	}
	metadataTags, err := marshalJSON(in.MetadataTags)
	if err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindValidationFailed, "marshal metadataTags", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindDatabaseError, "begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO nodes (
		id, title, url, source_domain, company, phrase_description, short_description, ai_summary,
		logo_url, thumbnail_url, extracted_fields, metadata_tags, segment, category, content_type,
		function_parent_id, function_hierarchy_code, organization_parent_id, organization_hierarchy_code,
		has_complete_metadata, import_source, is_deleted, date_added, date_modified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, in.Title, in.URL, in.SourceDomain, in.Company, in.PhraseDescription, in.ShortDescription, in.AISummary,
		in.LogoURL, in.ThumbnailURL, extractedFields, metadataTags, in.Segment, in.Category, in.ContentType,
		nullable(in.FunctionParentID), nullable(in.FunctionHierarchyCode), nullable(in.OrganizationParentID), nullable(in.OrganizationHierarchyCode),
		boolToInt(in.HasCompleteMetadata), defaultString(in.ImportSource, "manual"), now, now)
	if err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindDatabaseError, "insert node", err)
	}

	for i, concept := range in.KeyConcepts {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO key_concepts (node_id, concept, position) VALUES (?, ?, ?)`, id, concept, i); err != nil {
			return nil, core.NewError("storage.CreateNode", core.KindDatabaseError, "insert key concept", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, core.NewError("storage.CreateNode", core.KindDatabaseError, "commit transaction", err)
	}

	s.invalidateTree(HierarchyFunction)
	s.invalidateTree(HierarchyOrganization)
	return s.ReadNode(ctx, id)
}

// ReadNode returns the node with JSON fields parsed and its key concepts
// attached, or core.KindNotFound if absent or soft-deleted.
func (s *Store) ReadNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND is_deleted = 0`, id)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewError("storage.ReadNode", core.KindNotFound, "node not found: "+id, core.ErrNotFound)
		}
		return nil, core.NewError("storage.ReadNode", core.KindDatabaseError, "scan node", err)
	}

	concepts, err := s.keyConceptsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	n.KeyConcepts = concepts
	return n, nil
}

// FindNodeByURL returns the non-deleted node with this exact URL, or
// core.KindNotFound if absent — used by the import orchestrator's
// duplicate check (spec.md §4.7 step 3) to return the existing node
// instead of attempting (and failing) a create.
func (s *Store) FindNodeByURL(ctx context.Context, url string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE url = ? AND is_deleted = 0`, url)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewError("storage.FindNodeByURL", core.KindNotFound, "no node for url: "+url, core.ErrNotFound)
		}
		return nil, core.NewError("storage.FindNodeByURL", core.KindDatabaseError, "scan node", err)
	}
	concepts, err := s.keyConceptsFor(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	n.KeyConcepts = concepts
	return n, nil
}

// FindNodeByHierarchyCode returns the non-deleted node whose dotted code in
// view matches code exactly, or core.KindNotFound if absent — used by the
// tree API's node-lookup-by-code route (spec.md §6).
func (s *Store) FindNodeByHierarchyCode(ctx context.Context, view HierarchyType, code string) (*Node, error) {
	column := "function_hierarchy_code"
	if view == HierarchyOrganization {
		column = "organization_hierarchy_code"
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE `+column+` = ? AND is_deleted = 0`, code)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewError("storage.FindNodeByHierarchyCode", core.KindNotFound, "no node for code: "+code, core.ErrNotFound)
		}
		return nil, core.NewError("storage.FindNodeByHierarchyCode", core.KindDatabaseError, "scan node", err)
	}
	concepts, err := s.keyConceptsFor(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	n.KeyConcepts = concepts
	return n, nil
}

func (s *Store) keyConceptsFor(ctx context.Context, nodeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT concept FROM key_concepts WHERE node_id = ? ORDER BY position ASC`, nodeID)
	if err != nil {
		return nil, core.NewError("storage.keyConceptsFor", core.KindDatabaseError, "query key concepts", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, core.NewError("storage.keyConceptsFor", core.KindDatabaseError, "scan key concept", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateNode merges scalar and JSON fields from patch into the node at id.
func (s *Store) UpdateNode(ctx context.Context, id string, patch UpdateNodePatch) (*Node, error) {
	existing, err := s.ReadNode(ctx, id)
	if err != nil {
		return nil, err
	}

	set := []string{"date_modified = ?"}
	args := []interface{}{time.Now().UTC()}
	hierarchyChanged := false

	applyString := func(col string, v *string) {
		if v != nil {
			set = append(set, col+" = ?")
			args = append(args, *v)
		}
	}
	applyString("title", patch.Title)
	applyString("company", patch.Company)
	applyString("phrase_description", patch.PhraseDescription)
	applyString("short_description", patch.ShortDescription)
	applyString("ai_summary", patch.AISummary)
	applyString("logo_url", patch.LogoURL)
	applyString("thumbnail_url", patch.ThumbnailURL)
	applyString("segment", patch.Segment)
	applyString("category", patch.Category)
	applyString("content_type", patch.ContentType)

	if patch.FunctionParentID != nil {
		set = append(set, "function_parent_id = ?")
		args = append(args, nullable(*patch.FunctionParentID))
	}
	if patch.FunctionHierarchyCode != nil {
		set = append(set, "function_hierarchy_code = ?")
		args = append(args, nullable(*patch.FunctionHierarchyCode))
		hierarchyChanged = true
	}
	if patch.OrganizationParentID != nil {
		set = append(set, "organization_parent_id = ?")
		args = append(args, nullable(*patch.OrganizationParentID))
	}
	if patch.OrganizationHierarchyCode != nil {
		set = append(set, "organization_hierarchy_code = ?")
		args = append(args, nullable(*patch.OrganizationHierarchyCode))
		hierarchyChanged = true
	}
	if patch.HasCompleteMetadata != nil {
		set = append(set, "has_complete_metadata = ?")
		args = append(args, boolToInt(*patch.HasCompleteMetadata))
	}
	if patch.ExtractedFields != nil {
		merged := mergeMaps(existing.ExtractedFields, patch.ExtractedFields)
		data, err := marshalJSON(merged)
		if err != nil {
			return nil, core.NewError("storage.UpdateNode", core.KindValidationFailed, "marshal extractedFields", err)
		}
		set = append(set, "extracted_fields = ?")
		args = append(args, data)
	}
	if patch.MetadataTags != nil {
		data, err := marshalJSON(patch.MetadataTags)
		if err != nil {
			return nil, core.NewError("storage.UpdateNode", core.KindValidationFailed, "marshal metadataTags", err)
		}
		set = append(set, "metadata_tags = ?")
		args = append(args, data)
	}

	args = append(args, id)
	query := "UPDATE nodes SET " + join(set, ", ") + " WHERE id = ? AND is_deleted = 0"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, core.NewError("storage.UpdateNode", core.KindDatabaseError, "update node", err)
	}

	if patch.KeyConcepts != nil {
		if err := s.replaceKeyConcepts(ctx, id, patch.KeyConcepts); err != nil {
			return nil, err
		}
	}

	if hierarchyChanged {
		s.invalidateTree(HierarchyFunction)
		s.invalidateTree(HierarchyOrganization)
	}

	return s.ReadNode(ctx, id)
}

func (s *Store) replaceKeyConcepts(ctx context.Context, nodeID string, concepts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("storage.replaceKeyConcepts", core.KindDatabaseError, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM key_concepts WHERE node_id = ?`, nodeID); err != nil {
		return core.NewError("storage.replaceKeyConcepts", core.KindDatabaseError, "delete key concepts", err)
	}
	for i, c := range concepts {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO key_concepts (node_id, concept, position) VALUES (?, ?, ?)`, nodeID, c, i); err != nil {
			return core.NewError("storage.replaceKeyConcepts", core.KindDatabaseError, "insert key concept", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.NewError("storage.replaceKeyConcepts", core.KindDatabaseError, "commit transaction", err)
	}
	return nil
}

// DeleteNode soft-deletes the node by setting is_deleted = 1.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET is_deleted = 1, date_modified = ? WHERE id = ? AND is_deleted = 0`, time.Now().UTC(), id)
	if err != nil {
		return core.NewError("storage.DeleteNode", core.KindDatabaseError, "soft delete node", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return core.NewError("storage.DeleteNode", core.KindNotFound, "node not found: "+id, core.ErrNotFound)
	}
	s.invalidateTree(HierarchyFunction)
	s.invalidateTree(HierarchyOrganization)
	return nil
}

// MergeNodes copies non-null fields from secondary into primary, optionally
// preserving primary's metadata and appending secondary's summary,
// soft-deletes secondary, and re-parents secondary's children, all in one
// transaction (spec.md §4.2).
func (s *Store) MergeNodes(ctx context.Context, primaryID, secondaryID string, opts MergeOptions) (*Node, error) {
	if primaryID == secondaryID {
		return nil, core.NewError("storage.MergeNodes", core.KindValidationFailed, "cannot merge a node into itself", nil)
	}
	primary, err := s.ReadNode(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	secondary, err := s.ReadNode(ctx, secondaryID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "begin transaction", err)
	}
	defer tx.Rollback()

	merged := mergeScalarFields(primary, secondary)
	if opts.AppendSummary && secondary.AISummary != "" && secondary.AISummary != primary.AISummary {
		if merged.AISummary != "" {
			merged.AISummary = merged.AISummary + " " + secondary.AISummary
		} else {
			merged.AISummary = secondary.AISummary
		}
	}

	extractedFields, err := marshalJSON(mergeMaps(primary.ExtractedFields, secondary.ExtractedFields))
	if err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindValidationFailed, "marshal extractedFields", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET title = ?, company = ?, phrase_description = ?,
		short_description = ?, ai_summary = ?, logo_url = ?, thumbnail_url = ?, extracted_fields = ?,
		date_modified = ? WHERE id = ?`,
		merged.Title, merged.Company, merged.PhraseDescription, merged.ShortDescription, merged.AISummary,
		merged.LogoURL, merged.ThumbnailURL, extractedFields, time.Now().UTC(), primaryID); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "update primary node", err)
	}

	if !opts.KeepMetadata {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO node_metadata (node_id, registry_id, confidence, source)
			SELECT ?, registry_id, confidence, source FROM node_metadata WHERE node_id = ?`, primaryID, secondaryID); err != nil {
			return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "copy secondary metadata", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET function_parent_id = ? WHERE function_parent_id = ? AND is_deleted = 0`, primaryID, secondaryID); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "reparent function children", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET organization_parent_id = ? WHERE organization_parent_id = ? AND is_deleted = 0`, primaryID, secondaryID); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "reparent organization children", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET is_deleted = 1, date_modified = ? WHERE id = ?`, time.Now().UTC(), secondaryID); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "soft delete secondary", err)
	}

	changeID := uuid.NewString()
	metaBlob, _ := json.Marshal(map[string]interface{}{"mergedFrom": secondaryID})
	if _, err := tx.ExecContext(ctx, `INSERT INTO hierarchy_code_changes
		(id, node_id, change_type, hierarchy_type, trigger, old_code, new_code, related_node_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		changeID, primaryID, ChangeUpdated, HierarchyFunction, TriggerMerge,
		secondary.FunctionHierarchyCode, primary.FunctionHierarchyCode, secondaryID, string(metaBlob), time.Now().UTC()); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "insert audit row", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, core.NewError("storage.MergeNodes", core.KindDatabaseError, "commit transaction", err)
	}

	s.invalidateAllTrees()
	return s.ReadNode(ctx, primaryID)
}

func mergeScalarFields(primary, secondary *Node) *Node {
	merged := *primary
	if merged.Title == "" {
		merged.Title = secondary.Title
	}
	if merged.Company == "" {
		merged.Company = secondary.Company
	}
	if merged.PhraseDescription == "" {
		merged.PhraseDescription = secondary.PhraseDescription
	}
	if merged.ShortDescription == "" {
		merged.ShortDescription = secondary.ShortDescription
	}
	if merged.LogoURL == "" {
		merged.LogoURL = secondary.LogoURL
	}
	if merged.ThumbnailURL == "" {
		merged.ThumbnailURL = secondary.ThumbnailURL
	}
	return &merged
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNodeFromRows(rows *sql.Rows) (*Node, error) {
	return scanNode(rows)
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var company, phrase, short, summary, logo, thumb sql.NullString
	var functionParent, functionCode, orgParent, orgCode sql.NullString
	var extractedFieldsRaw, metadataTagsRaw string
	var hasComplete, isDeleted int

	if err := row.Scan(&n.ID, &n.Title, &n.URL, &n.SourceDomain, &company, &phrase, &short, &summary, &logo, &thumb,
		&extractedFieldsRaw, &metadataTagsRaw, &n.Segment, &n.Category, &n.ContentType,
		&functionParent, &functionCode, &orgParent, &orgCode, &hasComplete, &n.ImportSource, &isDeleted,
		&n.DateAdded, &n.DateModified); err != nil {
		return nil, err
	}

	n.Company, n.PhraseDescription, n.ShortDescription, n.AISummary = company.String, phrase.String, short.String, summary.String
	n.LogoURL, n.ThumbnailURL = logo.String, thumb.String
	n.FunctionParentID, n.FunctionHierarchyCode = functionParent.String, functionCode.String
	n.OrganizationParentID, n.OrganizationHierarchyCode = orgParent.String, orgCode.String
	n.HasCompleteMetadata = hasComplete != 0
	n.IsDeleted = isDeleted != 0

	if err := json.Unmarshal([]byte(extractedFieldsRaw), &n.ExtractedFields); err != nil {
		return nil, fmt.Errorf("unmarshal extracted_fields: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataTagsRaw), &n.MetadataTags); err != nil {
		return nil, fmt.Errorf("unmarshal metadata_tags: %w", err)
	}
	return &n, nil
}

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func mergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
