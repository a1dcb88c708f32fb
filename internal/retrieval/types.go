// Package retrieval implements the hybrid retrieval engine: vector
// similarity search over document chunks combined with bounded
// multi-hop traversal of the knowledge graph, merged into a single
// deduplicated, provenance-carrying context bundle.
//
// The pipeline is: query embedding -> chunk index lookup -> seed ids ->
// graph expansion -> merge. All state is per-query; nothing is cached
// across calls.
package retrieval

import (
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// SourceType tags where a context item came from.
type SourceType string

const (
	// SourceVector marks items returned by vector similarity search.
	SourceVector SourceType = "vector"

	// SourceGraph marks items discovered by graph traversal.
	SourceGraph SourceType = "graph"
)

// Retrieval parameter defaults.
const (
	DefaultTopK        = 5
	DefaultMaxHops     = 2
	DefaultFanoutLimit = 25
)

// Provenance records how a graph item was discovered: the vector-hit
// chunk the traversal started from and the node path walked to reach
// the item. Vector items carry no provenance (they are their own source).
type Provenance struct {
	// SeedChunkID is the vector-phase chunk the path starts at.
	SeedChunkID string `json:"seed_chunk_id"`

	// Path is the node id sequence from seed to item, inclusive.
	Path []string `json:"path"`
}

// ContextItem is the unit handed to answer synthesis. Exactly one of
// Chunk or Node is set, matching SourceType.
type ContextItem struct {
	// ID is the chunk id or graph node id. Unique within a bundle.
	ID string `json:"id"`

	SourceType SourceType `json:"source_type"`

	Chunk *store.Chunk     `json:"chunk,omitempty"`
	Node  *store.GraphNode `json:"node,omitempty"`

	// Score is the relevance signal: vector similarity for vector
	// items, hop-distance-derived for graph items. Higher is better.
	Score float64 `json:"score"`

	// HopDistance is the shortest hop count from a seed. Zero for
	// vector items.
	HopDistance int `json:"hop_distance,omitempty"`

	Provenance *Provenance `json:"provenance,omitempty"`
}

// ContextBundle is the final retrieval artifact: vector items first in
// similarity order, then graph items ranked by hop distance. Built
// fresh per query and discarded after synthesis consumes it.
type ContextBundle struct {
	Query string `json:"query"`

	Items []*ContextItem `json:"items"`

	VectorCount int `json:"vector_count"`
	GraphCount  int `json:"graph_count"`
	TotalCount  int `json:"total_count"`
}

// SeedResolver derives graph traversal seed ids from vector hits, in
// rank order. The default uses chunk ids directly, matching the graph
// schema written by ingestion (chunk nodes share chunk ids).
type SeedResolver func(hits []*store.VectorHit) []string

// ChunkIDSeeds is the default seed resolver.
func ChunkIDSeeds(hits []*store.VectorHit) []string {
	seeds := make([]string, len(hits))
	for i, hit := range hits {
		seeds[i] = hit.Chunk.ID
	}
	return seeds
}
