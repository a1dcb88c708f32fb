package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/prajwal-28/context-aware-research-assistant/internal/errors"
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// Orchestrator is the public retrieval entry point. It sequences
// vector search, graph expansion, and merge. Any dependency failure
// aborts the whole request; partial bundles are never returned.
type Orchestrator struct {
	index  store.ChunkIndex
	graph  store.KnowledgeGraph
	merger *ResultMerger

	fanoutLimit  int
	fetchWorkers int
	seedResolver SeedResolver
	logger       *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithFanoutLimit caps neighbors expanded per node per hop (0 = unlimited).
func WithFanoutLimit(limit int) Option {
	return func(o *Orchestrator) { o.fanoutLimit = limit }
}

// WithFetchWorkers bounds concurrent edge fetches during expansion.
func WithFetchWorkers(n int) Option {
	return func(o *Orchestrator) { o.fetchWorkers = n }
}

// WithSeedResolver overrides how seed ids are derived from vector hits.
func WithSeedResolver(r SeedResolver) Option {
	return func(o *Orchestrator) { o.seedResolver = r }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates a retrieval orchestrator over the given
// chunk index and knowledge graph.
func NewOrchestrator(index store.ChunkIndex, graph store.KnowledgeGraph, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		index:        index,
		graph:        graph,
		merger:       NewResultMerger(),
		fanoutLimit:  DefaultFanoutLimit,
		fetchWorkers: 4,
		seedResolver: ChunkIDSeeds,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Retrieve runs the hybrid retrieval pipeline for one query.
// topK and maxHops must be positive; invalid parameters fail before
// any I/O. An empty index yields an empty bundle, not an error.
func (o *Orchestrator) Retrieve(ctx context.Context, queryEmbedding []float32, queryText string, topK, maxHops int) (*ContextBundle, error) {
	if topK <= 0 {
		return nil, errors.InvalidParameter("top_k must be a positive integer")
	}
	if maxHops <= 0 {
		return nil, errors.InvalidParameter("max_hops must be a positive integer")
	}
	if len(queryEmbedding) == 0 {
		return nil, errors.InvalidParameter("query embedding must not be empty")
	}

	start := time.Now()

	hits, err := o.index.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, errors.RetrievalUnavailable("vector", err)
	}

	var expansions []*Expansion
	if len(hits) > 0 {
		seeds := o.seedResolver(hits)
		expander := NewHopExpander(o.graph, o.fanoutLimit, o.fetchWorkers, o.logger)
		expansions, err = expander.Expand(ctx, seeds, maxHops)
		if err != nil {
			return nil, errors.RetrievalUnavailable("graph", err)
		}
	}

	bundle := o.merger.Merge(queryText, hits, expansions)

	o.logger.Debug("retrieval_complete",
		slog.Int("top_k", topK),
		slog.Int("max_hops", maxHops),
		slog.Int("vector_count", bundle.VectorCount),
		slog.Int("graph_count", bundle.GraphCount),
		slog.Duration("duration", time.Since(start)))

	return bundle, nil
}
