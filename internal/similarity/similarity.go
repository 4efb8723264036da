// Package similarity implements the weighted-Jaccard similarity engine
// over typed metadata codes (spec.md §4.6).
package similarity

import (
	"context"
	"sort"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/storage"
)

// MinThreshold is the minimum score at or above which a pair is stored
// (spec.md §4.6).
const MinThreshold = 0.01

// DefaultBatchSize is the chunk size used by BatchCompute.
const DefaultBatchSize = 100

// TypeWeights is the per-metadata-type weight table from spec.md §4.6.
var TypeWeights = map[storage.MetadataType]float64{
	storage.MetaOrg: 2.0,
	storage.MetaDom: 1.5,
	storage.MetaFnc: 1.5,
	storage.MetaInd: 1.5,
	storage.MetaTec: 1.0,
	storage.MetaCon: 1.0,
	storage.MetaAud: 1.0,
	storage.MetaPlt: 1.0,
	storage.MetaPrc: 0.5,
	storage.MetaLic: 0.5,
	storage.MetaLng: 0.5,
}

// Engine computes and persists node-to-node similarity via the storage layer.
type Engine struct {
	store  *storage.Store
	logger core.Logger
}

// NewEngine builds an Engine backed by store.
func NewEngine(store *storage.Store, logger core.Logger) *Engine {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Engine{store: store, logger: logger}
}

// codeSet is a flattened set of "TYPE:CODE" keys to their type weight.
type codeSet map[string]float64

func weightedSet(codes map[storage.MetadataType][]string) codeSet {
	set := make(codeSet)
	for t, list := range codes {
		w, ok := TypeWeights[t]
		if !ok {
			w = 1.0
		}
		for _, c := range list {
			set[string(t)+":"+c] = w
		}
	}
	return set
}

// Score computes the weighted Jaccard similarity between two weighted sets:
// score = Σ min(wA(c), wB(c)) / Σ max(wA(c), wB(c)) over the union. If
// either side is empty or the intersection is empty, ok is false (spec.md
// §4.6 "the pair yields no similarity (null)").
func Score(a, b codeSet) (score float64, ok bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}

	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}

	var minSum, maxSum float64
	intersects := false
	for c := range union {
		wa, wb := a[c], b[c]
		if wa > 0 && wb > 0 {
			intersects = true
		}
		if wa < wb {
			minSum += wa
			maxSum += wb
		} else {
			minSum += wb
			maxSum += wa
		}
	}
	if !intersects || maxSum == 0 {
		return 0, false
	}

	s := minSum / maxSum
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s, true
}

// ComputeFor compares nodeID to every other node, storing pairs scoring at
// or above MinThreshold. Returns the stored edges.
func (e *Engine) ComputeFor(ctx context.Context, nodeID string) ([]storage.SimilarEdge, error) {
	allIDs, err := e.store.AllNodeIDs(ctx)
	if err != nil {
		return nil, err
	}

	rawA, err := e.store.GetMetadataCodeSet(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	setA := weightedSet(rawA)

	var stored []storage.SimilarEdge
	for _, otherID := range allIDs {
		if otherID == nodeID {
			continue
		}
		rawB, err := e.store.GetMetadataCodeSet(ctx, otherID)
		if err != nil {
			return nil, err
		}
		score, ok := Score(setA, weightedSet(rawB))
		if !ok || score < MinThreshold {
			continue
		}
		if err := e.store.UpsertSimilarity(ctx, nodeID, otherID, score, "jaccard_weighted"); err != nil {
			return nil, err
		}
		stored = append(stored, storage.SimilarEdge{NodeID: otherID, Score: score})
	}

	sort.Slice(stored, func(i, j int) bool { return stored[i].Score > stored[j].Score })
	return stored, nil
}

// BatchStats summarizes a BatchCompute or RecomputeAll run.
type BatchStats struct {
	Computed      int
	Stored        int
	Skipped       int
	Errors        int
	DurationMillis int64
}

// BatchCompute compares only pairs where a < b within nodeIDs, chunked by
// batchSize (default DefaultBatchSize). Per-pair errors are counted, not
// fatal, matching the batch's best-effort contract (spec.md §4.6).
func (e *Engine) BatchCompute(ctx context.Context, nodeIDs []string, batchSize int) (BatchStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	codeSets := make(map[string]codeSet, len(nodeIDs))
	for _, id := range nodeIDs {
		raw, err := e.store.GetMetadataCodeSet(ctx, id)
		if err != nil {
			return BatchStats{}, err
		}
		codeSets[id] = weightedSet(raw)
	}

	var stats BatchStats
	var pairs [][2]string
	for i := 0; i < len(nodeIDs); i++ {
		for j := i + 1; j < len(nodeIDs); j++ {
			a, b := nodeIDs[i], nodeIDs[j]
			if a >= b {
				a, b = b, a
			}
			pairs = append(pairs, [2]string{a, b})
		}
	}

	for start := 0; start < len(pairs); start += batchSize {
		end := start + batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		for _, pair := range pairs[start:end] {
			stats.Computed++
			score, ok := Score(codeSets[pair[0]], codeSets[pair[1]])
			if !ok || score < MinThreshold {
				stats.Skipped++
				continue
			}
			if err := e.store.UpsertSimilarity(ctx, pair[0], pair[1], score, "jaccard_weighted"); err != nil {
				stats.Errors++
				e.logger.Warn("similarity upsert failed", map[string]interface{}{"nodeA": pair[0], "nodeB": pair[1], "error": err.Error()})
				continue
			}
			stats.Stored++
		}
	}

	return stats, nil
}

// RecomputeAll clears similarities for every node with metadata, then
// batch-computes over that set (spec.md §4.6). Intended as an operator
// action run on a background worker, never inline with import completion
// (spec.md §9 "Similarity maintenance").
func (e *Engine) RecomputeAll(ctx context.Context) (BatchStats, error) {
	ids, err := e.store.NodeIDsWithMetadata(ctx)
	if err != nil {
		return BatchStats{}, err
	}
	if err := e.store.ClearAllSimilarity(ctx); err != nil {
		return BatchStats{}, err
	}
	return e.BatchCompute(ctx, ids, DefaultBatchSize)
}

// UpdateForNode deletes nodeID's existing edges, then recomputes via
// ComputeFor. Runs inline after a single node's metadata changes
// (spec.md §9).
func (e *Engine) UpdateForNode(ctx context.Context, nodeID string) ([]storage.SimilarEdge, error) {
	if err := e.store.DeleteSimilarityFor(ctx, nodeID); err != nil {
		return nil, err
	}
	return e.ComputeFor(ctx, nodeID)
}

// GetSimilar returns nodeID's neighbors ordered by score DESC, limited.
func (e *Engine) GetSimilar(ctx context.Context, nodeID string, limit int) ([]storage.SimilarEdge, error) {
	return e.store.GetSimilar(ctx, nodeID, limit)
}

// FindCommonSimilar finds, for each node in nodeIDs, its neighbors,
// aggregates by candidate, and returns the top candidates by
// (total_score DESC, match_count DESC), excluding the input set
// (spec.md §4.6).
func (e *Engine) FindCommonSimilar(ctx context.Context, nodeIDs []string, minScore float64, limit int) ([]CommonCandidate, error) {
	excluded := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		excluded[id] = struct{}{}
	}

	agg := make(map[string]*CommonCandidate)
	for _, id := range nodeIDs {
		neighbors, err := e.store.GetSimilar(ctx, id, 0)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, skip := excluded[n.NodeID]; skip {
				continue
			}
			if n.Score < minScore {
				continue
			}
			c, ok := agg[n.NodeID]
			if !ok {
				c = &CommonCandidate{NodeID: n.NodeID}
				agg[n.NodeID] = c
			}
			c.TotalScore += n.Score
			c.MatchCount++
		}
	}

	out := make([]CommonCandidate, 0, len(agg))
	for _, c := range agg {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].MatchCount > out[j].MatchCount
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CommonCandidate is one aggregated result of FindCommonSimilar.
type CommonCandidate struct {
	NodeID     string
	TotalScore float64
	MatchCount int
}
