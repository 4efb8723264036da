package orchestrator

import (
	"github.com/RBarbieri13/decant/internal/classify"
	"github.com/RBarbieri13/decant/internal/extract"
)

// ImportInput is the orchestrator's Import request (spec.md §4.7).
type ImportInput struct {
	URL          string
	ForceRefresh bool
	Priority     string
}

// Phase2 reports whether an enrichment job was enqueued.
type Phase2 struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"jobId,omitempty"`
}

// ImportResult is the orchestrator's Import response (spec.md §4.7 step 9).
type ImportResult struct {
	NodeID         string                    `json:"nodeId"`
	Cached         bool                      `json:"cached"`
	Classification *classify.Classification  `json:"classification"`
	HierarchyCodes classify.HierarchyCodes   `json:"hierarchyCodes"`
	Metadata       extract.Metadata          `json:"metadata"`
	Phase2         Phase2                    `json:"phase2"`
}
