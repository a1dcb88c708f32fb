package retrieval

import (
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// ResultMerger combines vector hits and graph expansions into one
// deduplicated, ranked context bundle.
type ResultMerger struct{}

// NewResultMerger creates a merger.
func NewResultMerger() *ResultMerger {
	return &ResultMerger{}
}

// hopScore converts hop distance to a relevance signal in (0,1]:
// directly connected nodes score 0.5, decaying with distance. Always
// below vector similarity's typical range so graph context never
// outranks a direct hit when a consumer re-sorts by score.
func hopScore(distance int) float64 {
	return 1.0 / (1.0 + float64(distance))
}

// Merge builds the context bundle: vector items first in similarity
// order, then graph items in expansion order (ascending hop distance,
// ties by discovery order). Graph items whose id matches a seed chunk
// are dropped; expansions are already unique per node.
func (m *ResultMerger) Merge(query string, hits []*store.VectorHit, expansions []*Expansion) *ContextBundle {
	items := make([]*ContextItem, 0, len(hits)+len(expansions))
	seedIDs := make(map[string]struct{}, len(hits))

	for _, hit := range hits {
		seedIDs[hit.Chunk.ID] = struct{}{}
		items = append(items, &ContextItem{
			ID:         hit.Chunk.ID,
			SourceType: SourceVector,
			Chunk:      hit.Chunk,
			Score:      hit.Score,
		})
	}

	graphCount := 0
	for _, exp := range expansions {
		if exp.Distance < 1 {
			continue
		}
		if _, isSeed := seedIDs[exp.Node.ID]; isSeed {
			continue
		}
		items = append(items, &ContextItem{
			ID:          exp.Node.ID,
			SourceType:  SourceGraph,
			Node:        exp.Node,
			Score:       hopScore(exp.Distance),
			HopDistance: exp.Distance,
			Provenance: &Provenance{
				SeedChunkID: exp.SeedID,
				Path:        exp.Path,
			},
		})
		graphCount++
	}

	return &ContextBundle{
		Query:       query,
		Items:       items,
		VectorCount: len(hits),
		GraphCount:  graphCount,
		TotalCount:  len(hits) + graphCount,
	}
}
