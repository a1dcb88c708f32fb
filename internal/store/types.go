// Package store provides the persistence layer consumed by retrieval:
// the vector chunk index (HNSW) and the knowledge graph (SQLite).
// Retrieval depends only on the capability interfaces defined here, so
// test doubles can substitute the real backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

// NodeKind identifies the kind of a knowledge graph node.
// The set is closed; relation labels, by contrast, are open strings.
type NodeKind string

const (
	NodeKindDocument NodeKind = "Document"
	NodeKindChunk    NodeKind = "Chunk"
	NodeKindPolicy   NodeKind = "Policy"
	NodeKindSection  NodeKind = "Section"
	NodeKindTopic    NodeKind = "Topic"
	NodeKindConcept  NodeKind = "Concept"
)

// ParseNodeKind validates a node kind string.
func ParseNodeKind(s string) (NodeKind, error) {
	switch NodeKind(s) {
	case NodeKindDocument, NodeKindChunk, NodeKindPolicy,
		NodeKindSection, NodeKindTopic, NodeKindConcept:
		return NodeKind(s), nil
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// Common relation labels written by ingestion. Labels are data, not an
// enum: extraction may produce arbitrary relations (e.g. AFFECTS).
const (
	RelationBelongsTo = "BELONGS_TO" // chunk -> document
	RelationMentions  = "MENTIONS"   // chunk -> entity
	RelationRelatesTo = "RELATES_TO" // entity -> entity (default)
)

// Chunk is a contiguous, ingested unit of document text with a stable
// identifier. Immutable after creation; read-only to retrieval.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Text       string            `json:"text"`
	Section    string            `json:"section,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// VectorHit is a chunk returned by vector similarity search.
// Constructed per query; never persisted.
type VectorHit struct {
	Chunk *Chunk `json:"chunk"`

	// Score is the similarity in [0,1], higher is more similar.
	Score float64 `json:"score"`

	// Rank is the 1-indexed position within the vector result set.
	Rank int `json:"rank"`
}

// GraphNode is a node in the knowledge graph. Nodes are shared across
// chunks and documents; the graph store owns them, retrieval only reads.
type GraphNode struct {
	ID         string            `json:"id"`
	Kind       NodeKind          `json:"kind"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphEdge is a directed relation between two graph nodes.
type GraphEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Relation string `json:"relation"`

	// Weight is an optional confidence in (0,1]; 0 means unset.
	Weight float64 `json:"weight,omitempty"`
}

// ErrNodeNotFound indicates a node id does not exist in the graph.
// Not fatal to traversal: the caller skips the path and continues.
var ErrNodeNotFound = errors.New("node not found")

// ChunkIndex is the vector search capability consumed by retrieval.
type ChunkIndex interface {
	// Add inserts chunks with their embedding vectors. Existing ids
	// are replaced.
	Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error

	// Search returns up to k chunks most similar to the embedding,
	// ordered by descending similarity. An empty index yields an empty
	// result, not an error.
	Search(ctx context.Context, embedding []float32, k int) ([]*VectorHit, error)

	// Delete removes chunks by id.
	Delete(ctx context.Context, chunkIDs []string) error

	// Count returns the number of indexed chunks.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// KnowledgeGraph is the graph read capability consumed by retrieval.
type KnowledgeGraph interface {
	// OutgoingEdges returns the edges leaving nodeID in stored
	// direction, in insertion order.
	OutgoingEdges(ctx context.Context, nodeID string) ([]*GraphEdge, error)

	// GetNode returns the node or ErrNodeNotFound.
	GetNode(ctx context.Context, nodeID string) (*GraphNode, error)

	Close() error
}

// GraphWriter is the write capability used by ingestion. Writes are
// idempotent upserts keyed by node id / (source, target, relation).
type GraphWriter interface {
	PutNode(ctx context.Context, node *GraphNode) error
	PutEdge(ctx context.Context, edge *GraphEdge) error
}

// GraphStore combines read and write graph capabilities plus the chunk
// text lookup needed to render graph-sourced chunks.
type GraphStore interface {
	KnowledgeGraph
	GraphWriter

	// GetChunkNodes returns chunk-kind nodes by id, skipping missing ids.
	GetChunkNodes(ctx context.Context, ids []string) ([]*GraphNode, error)

	// DeleteDocument removes a document node, its chunks, and all
	// edges touching them.
	DeleteDocument(ctx context.Context, docID string) error

	// NodeCount and EdgeCount report graph size for status output.
	NodeCount(ctx context.Context) (int, error)
	EdgeCount(ctx context.Context) (int, error)
}

// ErrDimensionMismatch indicates vector dimension mismatch between the
// embedder and the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reingest with the current embedder)", e.Expected, e.Got)
}
