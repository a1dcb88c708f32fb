package retrieval

import (
	"context"
	stderrors "errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// Expansion is one node discovered by graph traversal, recorded at the
// hop distance of its first discovery.
type Expansion struct {
	Node     *store.GraphNode
	Distance int

	// Path is the node id sequence from seed to this node, inclusive.
	Path []string

	// SeedID is the seed chunk whose traversal discovered this node
	// first (ties broken by seed rank, then edge insertion order).
	SeedID string
}

// HopExpander performs bounded multi-source breadth-first traversal
// over the knowledge graph. Edges are followed in their stored
// direction only.
type HopExpander struct {
	graph       store.KnowledgeGraph
	fanoutLimit int
	workers     int
	logger      *slog.Logger
}

// NewHopExpander creates an expander. fanoutLimit caps neighbors
// expanded per node per hop (0 = unlimited); workers bounds concurrent
// edge fetches per frontier.
func NewHopExpander(graph store.KnowledgeGraph, fanoutLimit, workers int, logger *slog.Logger) *HopExpander {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HopExpander{
		graph:       graph,
		fanoutLimit: fanoutLimit,
		workers:     workers,
		logger:      logger,
	}
}

// frontierNode is a node queued for expansion at the current depth.
type frontierNode struct {
	id     string
	path   []string
	seedID string
}

// Expand traverses up to maxHops from the seed ids and returns the
// discovered nodes in deterministic discovery order (distance first,
// then seed rank, then edge insertion order). Seeds themselves are not
// returned. Seed ids absent from the graph are silently skipped.
//
// Edge fetches within one frontier run concurrently, but discoveries
// are merged sequentially in frontier order so the shortest-path and
// tie-break rules never depend on arrival order.
func (e *HopExpander) Expand(ctx context.Context, seedIDs []string, maxHops int) ([]*Expansion, error) {
	if maxHops < 0 {
		maxHops = 0
	}

	// Visited holds every node seen, seeds included, so traversal
	// never revisits and cycles terminate naturally.
	visited := make(map[string]struct{}, len(seedIDs))
	var frontier []frontierNode

	for _, id := range seedIDs {
		if _, seen := visited[id]; seen {
			continue
		}
		if _, err := e.graph.GetNode(ctx, id); err != nil {
			if stderrors.Is(err, store.ErrNodeNotFound) {
				// Vector index and graph may be ingested
				// asynchronously; a missing seed just yields no paths.
				continue
			}
			return nil, err
		}
		visited[id] = struct{}{}
		frontier = append(frontier, frontierNode{id: id, path: []string{id}, seedID: id})
	}

	var discovered []*Expansion

	for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
		edgesByNode, err := e.fetchFrontierEdges(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []frontierNode
		for i, fn := range frontier {
			edges := edgesByNode[i]
			if e.fanoutLimit > 0 && len(edges) > e.fanoutLimit {
				edges = edges[:e.fanoutLimit]
			}
			for _, edge := range edges {
				if _, seen := visited[edge.TargetID]; seen {
					continue
				}
				visited[edge.TargetID] = struct{}{}

				path := make([]string, 0, len(fn.path)+1)
				path = append(path, fn.path...)
				path = append(path, edge.TargetID)

				node, err := e.graph.GetNode(ctx, edge.TargetID)
				if err != nil {
					if stderrors.Is(err, store.ErrNodeNotFound) {
						// Dangling edge; this path yields no context.
						continue
					}
					return nil, err
				}

				discovered = append(discovered, &Expansion{
					Node:     node,
					Distance: depth,
					Path:     path,
					SeedID:   fn.seedID,
				})
				next = append(next, frontierNode{id: edge.TargetID, path: path, seedID: fn.seedID})
			}
		}
		frontier = next
	}

	e.logger.Debug("graph_expansion_complete",
		slog.Int("seeds", len(seedIDs)),
		slog.Int("max_hops", maxHops),
		slog.Int("discovered", len(discovered)))

	return discovered, nil
}

// fetchFrontierEdges loads outgoing edges for every frontier node,
// concurrently up to the worker limit, indexed by frontier position.
func (e *HopExpander) fetchFrontierEdges(ctx context.Context, frontier []frontierNode) ([][]*store.GraphEdge, error) {
	results := make([][]*store.GraphEdge, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, fn := range frontier {
		g.Go(func() error {
			edges, err := e.graph.OutgoingEdges(gctx, fn.id)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
