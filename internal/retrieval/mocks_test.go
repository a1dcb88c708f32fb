package retrieval

import (
	"context"
	"sync/atomic"

	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// fakeIndex is a canned-response ChunkIndex.
type fakeIndex struct {
	hits        []*store.VectorHit
	err         error
	searchCalls int64
}

var _ store.ChunkIndex = (*fakeIndex)(nil)

func (f *fakeIndex) Search(ctx context.Context, embedding []float32, k int) ([]*store.VectorHit, error) {
	atomic.AddInt64(&f.searchCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) Add(ctx context.Context, chunks []*store.Chunk, vectors [][]float32) error {
	return nil
}
func (f *fakeIndex) Delete(ctx context.Context, chunkIDs []string) error { return nil }
func (f *fakeIndex) Count() int                                          { return len(f.hits) }
func (f *fakeIndex) Save(path string) error                              { return nil }
func (f *fakeIndex) Load(path string) error                              { return nil }
func (f *fakeIndex) Close() error                                        { return nil }

// fakeGraph is an in-memory KnowledgeGraph with insertion-ordered edges.
type fakeGraph struct {
	nodes     map[string]*store.GraphNode
	edges     map[string][]*store.GraphEdge
	edgesErr  error
	edgeCalls int64
}

var _ store.KnowledgeGraph = (*fakeGraph)(nil)

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: make(map[string]*store.GraphNode),
		edges: make(map[string][]*store.GraphEdge),
	}
}

func (f *fakeGraph) addNode(id string, kind store.NodeKind) {
	f.nodes[id] = &store.GraphNode{ID: id, Kind: kind, Label: id}
}

func (f *fakeGraph) addEdge(source, target, relation string) {
	f.edges[source] = append(f.edges[source], &store.GraphEdge{
		SourceID: source,
		TargetID: target,
		Relation: relation,
	})
}

func (f *fakeGraph) OutgoingEdges(ctx context.Context, nodeID string) ([]*store.GraphEdge, error) {
	atomic.AddInt64(&f.edgeCalls, 1)
	if f.edgesErr != nil {
		return nil, f.edgesErr
	}
	return f.edges[nodeID], nil
}

func (f *fakeGraph) GetNode(ctx context.Context, nodeID string) (*store.GraphNode, error) {
	node, ok := f.nodes[nodeID]
	if !ok {
		return nil, store.ErrNodeNotFound
	}
	return node, nil
}

func (f *fakeGraph) Close() error { return nil }

// vectorHits builds hits with descending scores for the given chunk ids.
func vectorHits(ids ...string) []*store.VectorHit {
	hits := make([]*store.VectorHit, len(ids))
	for i, id := range ids {
		hits[i] = &store.VectorHit{
			Chunk: &store.Chunk{ID: id, DocumentID: "doc", Ordinal: i, Text: "text of " + id},
			Score: 0.9 - float64(i)*0.1,
			Rank:  i + 1,
		}
	}
	return hits
}
