package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/RBarbieri13/decant/internal/core"
)

const facetCap = 10000

// SearchNodes is the LIKE-based fallback entry point, sorted by
// date_added DESC (spec.md §4.2).
func (s *Store) SearchNodes(ctx context.Context, query string, p Pagination) ([]SearchResult, error) {
	limit, offset := p.normalized()
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes
		WHERE is_deleted = 0 AND (title LIKE ? OR short_description LIKE ? OR phrase_description LIKE ? OR ai_summary LIKE ?)
		ORDER BY date_added DESC LIMIT ? OFFSET ?`, like, like, like, like, limit, offset)
	if err != nil {
		return nil, core.NewError("storage.SearchNodes", core.KindDatabaseError, "query nodes", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		n, err := scanNodeFromRows(rows)
		if err != nil {
			return nil, core.NewError("storage.SearchNodes", core.KindDatabaseError, "scan node", err)
		}
		out = append(out, SearchResult{Node: *n, MatchedFields: matchedFields(n, query), Snippet: snippetFor(n)})
	}
	return out, rows.Err()
}

// SearchNodesAdvanced ranks by FTS5 when the query is non-empty, falling
// back to LIKE otherwise; filters AND together; facets are computed over
// the matching set capped at facetCap rows, treated as best-effort past
// the cap per spec.md §9's Open Question (the cap is never exceeded
// silently: Facets.Capped reports it).
func (s *Store) SearchNodesAdvanced(ctx context.Context, query string, filters SearchFilters, p Pagination) (*SearchResponse, error) {
	limit, offset := p.normalized()

	where, args := buildFilterClause(filters)
	whereN, argsN := buildFilterClausePrefixed(filters, "n.")

	var rows *sql.Rows
	var err error

	// match describes the matching-set predicate (query text AND filters)
	// that produced Results, so facets and the unclamped total can be
	// computed over the exact same set rather than filters alone.
	match := matchingSet{where: where, args: args}

	if strings.TrimSpace(query) != "" {
		ftsArgs := append([]interface{}{query}, argsN...)
		q := `SELECT ` + nodeColumnsPrefixed + `
			FROM nodes_fts f JOIN nodes n ON n.rowid = f.rowid
			WHERE f.nodes_fts MATCH ? AND n.is_deleted = 0 ` + whereN + `
			ORDER BY rank LIMIT ? OFFSET ?`
		rows, err = s.db.QueryContext(ctx, q, append(ftsArgs, limit, offset)...)
		if err != nil {
			// FTS MATCH syntax errors fall back to LIKE, matching the spec's
			// "otherwise LIKE" rule rather than surfacing a parser error to callers.
			like := "%" + query + "%"
			likeArgs := append([]interface{}{like, like, like, like}, args...)
			q = `SELECT ` + nodeColumns + ` FROM nodes WHERE is_deleted = 0
				AND (title LIKE ? OR short_description LIKE ? OR phrase_description LIKE ? OR ai_summary LIKE ?) ` + where + `
				ORDER BY date_added DESC LIMIT ? OFFSET ?`
			rows, err = s.db.QueryContext(ctx, q, append(likeArgs, limit, offset)...)
			if err == nil {
				match = matchingSet{
					fromClause: "",
					where:      `AND (title LIKE ? OR short_description LIKE ? OR phrase_description LIKE ? OR ai_summary LIKE ?) ` + where,
					args:       likeArgs,
				}
			}
		} else {
			match = matchingSet{
				fromClause: "nodes_fts f JOIN nodes n ON n.rowid = f.rowid",
				where:      `AND f.nodes_fts MATCH ? ` + whereN,
				args:       ftsArgs,
			}
		}
	} else {
		q := `SELECT ` + nodeColumns + ` FROM nodes WHERE is_deleted = 0 ` + where + ` ORDER BY date_added DESC LIMIT ? OFFSET ?`
		rows, err = s.db.QueryContext(ctx, q, append(args, limit, offset)...)
	}
	if err != nil {
		return nil, core.NewError("storage.SearchNodesAdvanced", core.KindDatabaseError, "query nodes", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		n, err := scanNodeFromRows(rows)
		if err != nil {
			return nil, core.NewError("storage.SearchNodesAdvanced", core.KindDatabaseError, "scan node", err)
		}
		results = append(results, SearchResult{Node: *n, MatchedFields: matchedFields(n, query), Snippet: snippetFor(n)})
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError("storage.SearchNodesAdvanced", core.KindDatabaseError, "iterate rows", err)
	}

	facets, err := s.computeFacets(ctx, match)
	if err != nil {
		return nil, err
	}
	total, err := s.countMatchingSet(ctx, match)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{Results: results, Facets: *facets, Total: total}, nil
}

// matchingSet describes the rows SearchNodesAdvanced returned, so
// computeFacets and the unclamped total can be recomputed over the exact
// same set (query text AND filters) rather than filters alone
// (spec.md §4.2: facets and the total are both "over the matching set").
type matchingSet struct {
	fromClause string // "" means the bare nodes table; else a FROM clause joining nodes_fts
	where      string // starts with "AND "/"" and references n.* when fromClause is set
	args       []interface{}
}

// CountSearchResults returns the unclamped total matching the where clause
// (spec.md §4.2 "countSearchResults returns the unclamped total"). This is
// the filters-only entry point kept for callers that never ran a text
// query; SearchNodesAdvanced uses countMatchingSet instead so its total
// also reflects the query text.
func (s *Store) CountSearchResults(ctx context.Context, where string, args []interface{}) (int64, error) {
	var total int64
	q := `SELECT COUNT(*) FROM nodes WHERE is_deleted = 0 ` + where
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, core.NewError("storage.CountSearchResults", core.KindDatabaseError, "count nodes", err)
	}
	return total, nil
}

func (s *Store) countMatchingSet(ctx context.Context, match matchingSet) (int64, error) {
	var q string
	if match.fromClause != "" {
		q = `SELECT COUNT(*) FROM ` + match.fromClause + ` WHERE n.is_deleted = 0 ` + match.where
	} else {
		q = `SELECT COUNT(*) FROM nodes WHERE is_deleted = 0 ` + match.where
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, q, match.args...).Scan(&total); err != nil {
		return 0, core.NewError("storage.countMatchingSet", core.KindDatabaseError, "count matching set", err)
	}
	return total, nil
}

func (s *Store) computeFacets(ctx context.Context, match matchingSet) (*Facets, error) {
	facets := &Facets{
		Segments:      map[string]int64{},
		Categories:    map[string]int64{},
		ContentTypes:  map[string]int64{},
		Organizations: map[string]int64{},
	}

	var cappedQuery string
	if match.fromClause != "" {
		cols := "n.segment, n.category, n.content_type, n.company"
		cappedQuery = `SELECT ` + cols + ` FROM ` + match.fromClause + ` WHERE n.is_deleted = 0 ` + match.where + ` LIMIT ?`
	} else {
		cappedQuery = `SELECT segment, category, content_type, company FROM nodes WHERE is_deleted = 0 ` + match.where + ` LIMIT ?`
	}
	rows, err := s.db.QueryContext(ctx, cappedQuery, append(append([]interface{}{}, match.args...), facetCap+1)...)
	if err != nil {
		return nil, core.NewError("storage.computeFacets", core.KindDatabaseError, "query facets", err)
	}
	defer rows.Close()

	orgCounts := map[string]int64{}
	var n int64
	for rows.Next() {
		var segment, category, contentType, company string
		if err := rows.Scan(&segment, &category, &contentType, &company); err != nil {
			return nil, core.NewError("storage.computeFacets", core.KindDatabaseError, "scan facet row", err)
		}
		n++
		if n > facetCap {
			facets.Capped = true
			break
		}
		if segment != "" {
			facets.Segments[segment]++
		}
		if category != "" {
			facets.Categories[category]++
		}
		if contentType != "" {
			facets.ContentTypes[contentType]++
		}
		if company != "" {
			orgCounts[company]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError("storage.computeFacets", core.KindDatabaseError, "iterate facet rows", err)
	}

	facets.Organizations = top20(orgCounts)
	return facets, nil
}

func top20(counts map[string]int64) map[string]int64 {
	type kv struct {
		k string
		v int64
	}
	list := make([]kv, 0, len(counts))
	for k, v := range counts {
		list = append(list, kv{k, v})
	}
	// simple selection of the top 20 by count; facet volume is small enough
	// that an O(n*20) selection beats pulling in a sort import for this.
	out := map[string]int64{}
	for i := 0; i < 20 && len(list) > 0; i++ {
		best := 0
		for j := 1; j < len(list); j++ {
			if list[j].v > list[best].v {
				best = j
			}
		}
		out[list[best].k] = list[best].v
		list = append(list[:best], list[best+1:]...)
	}
	return out
}

// buildFilterClause ANDs together the filter predicates. prefix is "" for
// queries against the bare nodes table and "n." for the FTS join, where
// nodes_fts shares several column names with nodes and unqualified
// references would be ambiguous.
func buildFilterClause(f SearchFilters) (string, []interface{}) {
	return buildFilterClausePrefixed(f, "")
}

func buildFilterClausePrefixed(f SearchFilters, prefix string) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if len(f.Segments) > 0 {
		clauses = append(clauses, prefix+"segment IN ("+placeholders(len(f.Segments))+")")
		for _, v := range f.Segments {
			args = append(args, v)
		}
	}
	if len(f.Categories) > 0 {
		clauses = append(clauses, prefix+"category IN ("+placeholders(len(f.Categories))+")")
		for _, v := range f.Categories {
			args = append(args, v)
		}
	}
	if len(f.ContentTypes) > 0 {
		clauses = append(clauses, prefix+"content_type IN ("+placeholders(len(f.ContentTypes))+")")
		for _, v := range f.ContentTypes {
			args = append(args, v)
		}
	}
	if len(f.Organizations) > 0 {
		var orClauses []string
		for _, v := range f.Organizations {
			orClauses = append(orClauses, prefix+"company LIKE ?")
			args = append(args, "%"+v+"%")
		}
		clauses = append(clauses, "("+strings.Join(orClauses, " OR ")+")")
	}
	if f.DateRangeStart != nil {
		clauses = append(clauses, prefix+"date_added >= ?")
		args = append(args, *f.DateRangeStart)
	}
	if f.DateRangeEnd != nil {
		clauses = append(clauses, prefix+"date_added <= ?")
		args = append(args, *f.DateRangeEnd)
	}
	if f.HasCompleteMetadata != nil {
		clauses = append(clauses, prefix+"has_complete_metadata = ?")
		args = append(args, boolToInt(*f.HasCompleteMetadata))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "AND " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// matchedFields reports which textual fields contain query, case-insensitively.
func matchedFields(n *Node, query string) []string {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	var fields []string
	check := func(name, value string) {
		if strings.Contains(strings.ToLower(value), q) {
			fields = append(fields, name)
		}
	}
	check("title", n.Title)
	check("shortDescription", n.ShortDescription)
	check("phraseDescription", n.PhraseDescription)
	check("aiSummary", n.AISummary)
	check("company", n.Company)
	return fields
}

// snippetFor returns the first non-empty of shortDescription, phraseDescription, aiSummary.
func snippetFor(n *Node) string {
	for _, v := range []string{n.ShortDescription, n.PhraseDescription, n.AISummary} {
		if v != "" {
			return v
		}
	}
	return ""
}
