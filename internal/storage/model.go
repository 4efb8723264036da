// Package storage implements the SQLite-backed persistence layer: node
// CRUD, hierarchy tree traversal, FTS + facet search, and the metadata
// junction, per spec.md §3 and §4.2.
package storage

import "time"

// Node is the unit of curation. url is unique across non-deleted rows.
type Node struct {
	ID                     string                 `json:"id"`
	Title                  string                 `json:"title"`
	URL                    string                 `json:"url"`
	SourceDomain           string                 `json:"sourceDomain"`
	Company                string                 `json:"company,omitempty"`
	PhraseDescription      string                 `json:"phraseDescription,omitempty"`
	ShortDescription       string                 `json:"shortDescription,omitempty"`
	AISummary              string                 `json:"aiSummary,omitempty"`
	LogoURL                string                 `json:"logoUrl,omitempty"`
	ThumbnailURL           string                 `json:"thumbnailUrl,omitempty"`
	ExtractedFields        map[string]interface{} `json:"extractedFields,omitempty"`
	MetadataTags           []string               `json:"metadataTags,omitempty"`
	KeyConcepts            []string               `json:"keyConcepts,omitempty"`
	Segment                string                 `json:"segment,omitempty"`
	Category               string                 `json:"category,omitempty"`
	ContentType            string                 `json:"contentType,omitempty"`
	FunctionParentID       string                 `json:"functionParentId,omitempty"`
	FunctionHierarchyCode  string                 `json:"functionHierarchyCode,omitempty"`
	OrganizationParentID   string                 `json:"organizationParentId,omitempty"`
	OrganizationHierarchyCode string              `json:"organizationHierarchyCode,omitempty"`
	// HasCompleteMetadata resolves the spec.md §9 Open Question about the
	// "Phase 2 completed" flag: it is its own indexed boolean column, not
	// purely a JSON-extracted value, so searchNodesAdvanced's hasMetadata
	// filter can use an index.
	HasCompleteMetadata bool `json:"hasCompleteMetadata"`
	// ImportSource records how the node was created: CreateNode defaults it
	// to "manual" and the import orchestrator sets "import" (SPEC_FULL.md §3
	// supplemental field).
	ImportSource string    `json:"importSource,omitempty"`
	IsDeleted    bool      `json:"isDeleted"`
	DateAdded    time.Time `json:"dateAdded"`
	DateModified time.Time `json:"dateModified"`
}

// Segment is a taxonomy root for the function hierarchy.
type Segment struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Organization is a taxonomy root for the organization hierarchy.
type Organization struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// MetadataType is the closed vocabulary of typed metadata codes, per
// spec.md §3 and the similarity-weight table of §4.6.
type MetadataType string

const (
	MetaOrg MetadataType = "ORG"
	MetaDom MetadataType = "DOM"
	MetaFnc MetadataType = "FNC"
	MetaTec MetadataType = "TEC"
	MetaCon MetadataType = "CON"
	MetaInd MetadataType = "IND"
	MetaAud MetadataType = "AUD"
	MetaPrc MetadataType = "PRC"
	MetaLic MetadataType = "LIC"
	MetaLng MetadataType = "LNG"
	MetaPlt MetadataType = "PLT"
)

// MetadataCodeRegistry is a typed vocabulary entry; (Type, Code) is unique.
type MetadataCodeRegistry struct {
	ID          int64        `json:"id"`
	Type        MetadataType `json:"type"`
	Code        string       `json:"code"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description,omitempty"`
	UsageCount  int64        `json:"usageCount"`
}

// MetadataSource identifies who attached a NodeMetadata row.
type MetadataSource string

const (
	SourceAI     MetadataSource = "ai"
	SourceUser   MetadataSource = "user"
	SourceImport MetadataSource = "import"
)

// NodeMetadata is the junction row between a node and a registry entry.
type NodeMetadata struct {
	NodeID     string         `json:"nodeId"`
	RegistryID int64          `json:"registryId"`
	Type       MetadataType   `json:"type"`
	Code       string         `json:"code"`
	Confidence float64        `json:"confidence"`
	Source     MetadataSource `json:"source"`
}

// NodeSimilarity is an undirected edge; NodeAID < NodeBID lexicographically.
type NodeSimilarity struct {
	NodeAID   string    `json:"nodeAId"`
	NodeBID   string    `json:"nodeBId"`
	Score     float64   `json:"score"`
	Method    string    `json:"method"`
	ComputedAt time.Time `json:"computedAt"`
}

// HierarchyType names one of the two orthogonal trees.
type HierarchyType string

const (
	HierarchyFunction     HierarchyType = "function"
	HierarchyOrganization HierarchyType = "organization"
)

// ChangeType and Trigger are the closed vocabularies of hierarchy_code_changes.
type ChangeType string

const (
	ChangeCreated      ChangeType = "created"
	ChangeUpdated      ChangeType = "updated"
	ChangeMoved        ChangeType = "moved"
	ChangeRestructured ChangeType = "restructured"
)

type ChangeTrigger string

const (
	TriggerImport      ChangeTrigger = "import"
	TriggerUserMove    ChangeTrigger = "user_move"
	TriggerRestructure ChangeTrigger = "restructure"
	TriggerMerge       ChangeTrigger = "merge"
)

// HierarchyCodeChange is an append-only audit row (spec.md §3).
type HierarchyCodeChange struct {
	ID            string        `json:"id"`
	NodeID        string        `json:"nodeId"`
	ChangeType    ChangeType    `json:"changeType"`
	HierarchyType HierarchyType `json:"hierarchyType"`
	Trigger       ChangeTrigger `json:"trigger"`
	OldCode       string        `json:"oldCode,omitempty"`
	NewCode       string        `json:"newCode,omitempty"`
	RelatedNodeID string        `json:"relatedNodeId,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ImportCacheEntry is the in-process, URL-keyed short-circuit record; see
// internal/importcache for the TTL map that holds these.
type ImportCacheEntry struct {
	URL            string                 `json:"url"`
	NodeID         string                 `json:"nodeId"`
	Classification map[string]interface{} `json:"classification"`
	HierarchyCodes map[string]interface{} `json:"hierarchyCodes"`
	CachedAt       time.Time              `json:"cachedAt"`
}

// CreateNodeInput is the payload accepted by Store.CreateNode.
type CreateNodeInput struct {
	// ID, if set, is used as the node's primary key instead of a
	// freshly generated UUID — callers that must know the node's UUID
	// before it's persisted (e.g. the orchestrator's differentiator
	// collision fallback, spec.md §4.5) generate it themselves and pass
	// it through here so the audit trail and the persisted row agree.
	ID                        string
	Title                     string
	URL                       string
	SourceDomain              string
	Company                   string
	PhraseDescription         string
	ShortDescription          string
	AISummary                 string
	LogoURL                   string
	ThumbnailURL              string
	ExtractedFields           map[string]interface{}
	MetadataTags              []string
	KeyConcepts               []string
	Segment                   string
	Category                  string
	ContentType               string
	FunctionParentID          string
	FunctionHierarchyCode     string
	OrganizationParentID      string
	OrganizationHierarchyCode string
	HasCompleteMetadata       bool
	ImportSource              string
}

// UpdateNodePatch merges non-nil fields into an existing node.
type UpdateNodePatch struct {
	Title                     *string
	Company                   *string
	PhraseDescription         *string
	ShortDescription          *string
	AISummary                 *string
	LogoURL                   *string
	ThumbnailURL              *string
	ExtractedFields           map[string]interface{}
	MetadataTags              []string
	KeyConcepts               []string
	Segment                   *string
	Category                  *string
	ContentType               *string
	FunctionParentID          *string
	FunctionHierarchyCode     *string
	OrganizationParentID      *string
	OrganizationHierarchyCode *string
	HasCompleteMetadata       *bool
}

// MergeOptions controls Store.MergeNodes.
type MergeOptions struct {
	KeepMetadata   bool
	AppendSummary  bool
}

// Pagination is the shared offset/limit contract for list endpoints.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) normalized() (limit, offset int) {
	limit = p.Limit
	if limit <= 0 {
		limit = 50
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// SearchFilters is the AND-composed filter set for searchNodesAdvanced.
type SearchFilters struct {
	Segments            []string
	Categories           []string
	ContentTypes         []string
	Organizations        []string
	DateRangeStart       *time.Time
	DateRangeEnd         *time.Time
	HasCompleteMetadata  *bool
}

// SearchResult is one row of a search response, with highlighting metadata.
type SearchResult struct {
	Node          Node     `json:"node"`
	MatchedFields []string `json:"matchedFields"`
	Snippet       string   `json:"snippet,omitempty"`
}

// Facets are aggregated counts over the matching set, capped at 10000 rows
// per spec.md §4.2 ("best-effort" per the Open Question in §9).
type Facets struct {
	Segments      map[string]int64 `json:"segments"`
	Categories    map[string]int64 `json:"categories"`
	ContentTypes  map[string]int64 `json:"contentTypes"`
	Organizations map[string]int64 `json:"organizations"`
	Capped        bool             `json:"capped"`
}

// SearchResponse is the full result of searchNodesAdvanced.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Facets  Facets         `json:"facets"`
	Total   int64          `json:"total"`
}

// TreeNode is one entry of a hierarchy tree, built from dotted codes.
type TreeNode struct {
	NodeID   string      `json:"nodeId"`
	Code     string      `json:"code"`
	Title    string      `json:"title"`
	Children []*TreeNode `json:"children,omitempty"`
}
