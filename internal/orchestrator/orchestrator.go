package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RBarbieri13/decant/internal/classify"
	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/enrich"
	"github.com/RBarbieri13/decant/internal/extract"
	"github.com/RBarbieri13/decant/internal/importcache"
	"github.com/RBarbieri13/decant/internal/similarity"
	"github.com/RBarbieri13/decant/internal/storage"
)

// Orchestrator wires the import pipeline's nine steps together (spec.md
// §4.7): validate, cache lookup, duplicate check, extract, classify,
// assign hierarchy codes, persist, enqueue enrichment, return.
type Orchestrator struct {
	Store      *storage.Store
	Factory    *extract.Factory
	Classifier *classify.Classifier
	Similarity *similarity.Engine
	Cache      *importcache.Cache
	Enrich     *enrich.Pool // optional; nil disables step 8
	APIKeys    map[string]string
	Tracer     trace.Tracer // optional; nil disables spans
	logger     core.Logger

	group singleflight.Group
}

// New builds an Orchestrator. logger may be nil.
func New(store *storage.Store, factory *extract.Factory, classifier *classify.Classifier, engine *similarity.Engine, cache *importcache.Cache, enrichPool *enrich.Pool, apiKeys map[string]string, logger core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{
		Store: store, Factory: factory, Classifier: classifier, Similarity: engine,
		Cache: cache, Enrich: enrichPool, APIKeys: apiKeys, logger: logger,
	}
}

// Import runs the full nine-step pipeline for in.URL. Concurrent imports
// of the same normalized URL are collapsed via singleflight so the
// extract/classify/persist sequence runs at most once per URL at a time
// (SPEC_FULL.md §4.7).
func (o *Orchestrator) Import(ctx context.Context, in ImportInput) (*ImportResult, error) {
	if o.Tracer != nil {
		var span trace.Span
		ctx, span = o.Tracer.Start(ctx, "orchestrator.Import", trace.WithAttributes(attribute.String("url", in.URL)))
		defer span.End()
	}

	// Step 1: validate + SSRF check.
	if _, err := ValidateURL(in.URL); err != nil {
		return nil, err
	}
	normalized := NormalizeURL(in.URL)

	v, err, _ := o.group.Do(normalized, func() (interface{}, error) {
		return o.doImport(ctx, in, normalized)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ImportResult), nil
}

func (o *Orchestrator) doImport(ctx context.Context, in ImportInput, normalized string) (*ImportResult, error) {
	// Step 2: cache lookup.
	if !in.ForceRefresh {
		if entry, ok := o.Cache.Get(normalized); ok {
			if node, err := o.Store.ReadNode(ctx, entry.NodeID); err == nil {
				return cachedResult(node, entry), nil
			}
			o.Cache.Invalidate(normalized)
		}
	}

	// Step 3: duplicate check.
	if !in.ForceRefresh {
		if node, err := o.Store.FindNodeByURL(ctx, in.URL); err == nil {
			entry := storage.ImportCacheEntry{URL: in.URL, NodeID: node.ID, CachedAt: time.Now()}
			o.Cache.Set(normalized, entry)
			return cachedResult(node, entry), nil
		}
	}

	// Step 4: extract.
	extractResult, extractErr := o.Factory.Extract(ctx, in.URL, extract.Options{APIKeys: o.APIKeys})
	if extractErr != nil {
		if !core.IsRecoverable(extractErr) {
			return nil, extractErr
		}
		extractResult = fallbackExtraction(in.URL)
	}

	title, description := fieldsFromExtraction(extractResult)

	// Step 5: classify.
	classification := o.Classifier.Classify(ctx, classify.Input{Title: title, URL: in.URL, Content: description})

	// Step 6: assign hierarchy codes.
	functionPrefix := classification.Segment + "." + classification.Category + "." + classification.ContentType
	existingFnCodes, err := o.Store.SiblingCodes(ctx, storage.HierarchyFunction, functionPrefix)
	if err != nil {
		return nil, err
	}

	orgPrefix := ""
	var existingOrgCodes []string
	if classification.Organization != "" {
		orgPrefix = classify.Normalize(classification.Organization)
		existingOrgCodes, err = o.Store.SiblingCodes(ctx, storage.HierarchyOrganization, orgPrefix)
		if err != nil {
			return nil, err
		}
	}

	candidateFields := map[string]string{"brand": title}
	nodeID := uuid.NewString()
	codes, fnDiff, orgDiff := classify.AssignCodes(classification, candidateFields, existingFnCodes, orgPrefix, existingOrgCodes, nodeID)

	// Step 7: persist. nodeID is generated above rather than left to
	// CreateNode so the differentiator's collision-fallback UUID prefix
	// (spec.md §4.5) matches the node's actual persisted ID.
	node, err := o.Store.CreateNode(ctx, storage.CreateNodeInput{
		ID:                        nodeID,
		Title:                     title,
		URL:                       in.URL,
		SourceDomain:              sourceDomain(extractResult),
		ShortDescription:          description,
		AISummary:                 classification.Summary,
		ExtractedFields:           extractResult.Data,
		KeyConcepts:               classification.KeyConcepts,
		Segment:                   classification.Segment,
		Category:                  classification.Category,
		ContentType:               classification.ContentType,
		FunctionHierarchyCode:     codes.FunctionCode,
		OrganizationHierarchyCode: codes.OrganizationCode,
		HasCompleteMetadata:       classification.Confidence >= FallbackConfidenceMatch,
		ImportSource:              "import",
	})
	if err != nil {
		return nil, err
	}

	if err := o.Store.RecordHierarchyCodeChange(ctx, storage.HierarchyCodeChange{
		NodeID: node.ID, ChangeType: storage.ChangeCreated, HierarchyType: storage.HierarchyFunction,
		Trigger: storage.TriggerImport, NewCode: codes.FunctionCode,
	}); err != nil {
		return nil, err
	}
	if fnDiff.Collision {
		if err := o.Store.RecordHierarchyCodeChange(ctx, storage.HierarchyCodeChange{
			NodeID: node.ID, ChangeType: storage.ChangeRestructured, HierarchyType: storage.HierarchyFunction,
			Trigger: storage.TriggerRestructure, NewCode: codes.FunctionCode,
			Metadata: map[string]interface{}{"collision": true, "priority_exhausted": fnDiff.PriorityExhausted},
		}); err != nil {
			return nil, err
		}
	}
	if codes.OrganizationCode != "" {
		if err := o.Store.RecordHierarchyCodeChange(ctx, storage.HierarchyCodeChange{
			NodeID: node.ID, ChangeType: storage.ChangeCreated, HierarchyType: storage.HierarchyOrganization,
			Trigger: storage.TriggerImport, NewCode: codes.OrganizationCode,
		}); err != nil {
			return nil, err
		}
		if orgDiff.Collision {
			if err := o.Store.RecordHierarchyCodeChange(ctx, storage.HierarchyCodeChange{
				NodeID: node.ID, ChangeType: storage.ChangeRestructured, HierarchyType: storage.HierarchyOrganization,
				Trigger: storage.TriggerRestructure, NewCode: codes.OrganizationCode,
				Metadata: map[string]interface{}{"collision": true, "priority_exhausted": orgDiff.PriorityExhausted},
			}); err != nil {
				return nil, err
			}
		}
	}

	if len(classification.KeyConcepts) > 0 {
		entries := make([]storage.MetadataEntry, 0, len(classification.KeyConcepts))
		for _, concept := range classification.KeyConcepts {
			entries = append(entries, storage.MetadataEntry{
				Type: storage.MetaCon, Code: classify.Normalize(concept), DisplayName: concept,
				Confidence: classification.Confidence, Source: storage.SourceAI,
			})
		}
		if err := o.Store.SetNodeMetadata(ctx, node.ID, entries); err != nil {
			return nil, err
		}
	}

	if _, err := o.Similarity.UpdateForNode(ctx, node.ID); err != nil {
		o.logger.Warn("similarity update failed after import", map[string]interface{}{"node_id": node.ID, "error": err.Error()})
	}

	entry := storage.ImportCacheEntry{URL: in.URL, NodeID: node.ID, CachedAt: time.Now()}
	o.Cache.Set(normalized, entry)

	// Step 8: enqueue enrichment.
	phase2 := Phase2{}
	if o.Enrich != nil {
		jobID, queued := o.Enrich.Enqueue(node.ID)
		phase2 = Phase2{Queued: queued, JobID: jobID}
	}

	// Step 9: return.
	return &ImportResult{
		NodeID:         node.ID,
		Cached:         false,
		Classification: classification,
		HierarchyCodes: codes,
		Metadata:       extractResult.Metadata,
		Phase2:         phase2,
	}, nil
}

// FallbackConfidenceMatch is the confidence threshold below which a node
// is considered to still need enrichment (spec.md §3's
// has_complete_metadata flag, driven by classifier confidence).
const FallbackConfidenceMatch = 0.5

func cachedResult(node *storage.Node, entry storage.ImportCacheEntry) *ImportResult {
	return &ImportResult{
		NodeID: node.ID,
		Cached: true,
		Classification: &classify.Classification{
			Segment: node.Segment, Category: node.Category, ContentType: node.ContentType,
			Confidence: 1.0, KeyConcepts: node.KeyConcepts, Summary: node.AISummary,
		},
		HierarchyCodes: classify.HierarchyCodes{
			FunctionCode: node.FunctionHierarchyCode, OrganizationCode: node.OrganizationHierarchyCode,
		},
	}
}

func fallbackExtraction(rawURL string) *extract.Result {
	return &extract.Result{
		Success: true,
		Data:    map[string]interface{}{},
		Metadata: extract.Metadata{
			ExtractionMethod: extract.MethodFallback,
			Confidence:       0.3,
			Timestamp:        time.Now().UTC(),
		},
	}
}

func fieldsFromExtraction(r *extract.Result) (title, description string) {
	if r == nil || r.Data == nil {
		return "", ""
	}
	if v, ok := r.Data["title"].(string); ok {
		title = v
	}
	if v, ok := r.Data["fullName"].(string); ok && title == "" {
		title = v
	}
	if v, ok := r.Data["text"].(string); ok && title == "" {
		title = v
	}
	if v, ok := r.Data["description"].(string); ok {
		description = v
	}
	if v, ok := r.Data["text"].(string); ok && description == "" {
		description = v
	}
	return title, description
}

func sourceDomain(r *extract.Result) string {
	if r == nil || r.Data == nil {
		return ""
	}
	if v, ok := r.Data["domain"].(string); ok {
		return v
	}
	return ""
}
