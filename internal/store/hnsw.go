package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// ChunkIndexConfig configures the HNSW chunk index.
type ChunkIndexConfig struct {
	// Dimensions is the embedding dimension. Must match the embedder.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultChunkIndexConfig returns sensible defaults for the chunk index.
func DefaultChunkIndexConfig(dimensions int) ChunkIndexConfig {
	return ChunkIndexConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// HNSWChunkIndex implements ChunkIndex using the coder/hnsw pure Go
// HNSW graph, keeping chunk metadata alongside the vectors so Search
// can return fully populated hits.
type HNSWChunkIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config ChunkIndexConfig

	// ID mapping (string <-> uint64) plus chunk metadata by id.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	chunks  map[string]*Chunk
	nextKey uint64

	closed bool
}

var _ ChunkIndex = (*HNSWChunkIndex)(nil)

// hnswMetadata stores ID mappings and chunk metadata for persistence.
type hnswMetadata struct {
	IDMap   map[string]uint64
	Chunks  map[string]*Chunk
	NextKey uint64
	Config  ChunkIndexConfig
}

// NewHNSWChunkIndex creates a new HNSW-backed chunk index.
func NewHNSWChunkIndex(cfg ChunkIndexConfig) (*HNSWChunkIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWChunkIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		chunks: make(map[string]*Chunk),
	}, nil
}

// Add inserts chunks with their vectors. Existing ids are replaced via
// lazy deletion (mappings updated, graph node orphaned).
func (s *HNSWChunkIndex) Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("chunk index is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, c := range chunks {
		if existingKey, exists := s.idMap[c.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, c.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[c.ID] = key
		s.keyMap[key] = c.ID
		s.chunks[c.ID] = c
	}

	return nil
}

// Search finds up to k most similar chunks. An empty index returns an
// empty slice.
func (s *HNSWChunkIndex) Search(ctx context.Context, embedding []float32, k int) ([]*VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}
	if len(embedding) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(embedding)}
	}
	if s.graph.Len() == 0 {
		return []*VectorHit{}, nil
	}

	query := make([]float32, len(embedding))
	copy(query, embedding)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(query)
	}

	nodes := s.graph.Search(query, k)

	hits := make([]*VectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			// Lazy-deleted orphan; not a live chunk anymore.
			continue
		}
		chunk, ok := s.chunks[id]
		if !ok {
			continue
		}

		distance := s.graph.Distance(query, node.Value)
		hits = append(hits, &VectorHit{
			Chunk: chunk,
			Score: distanceToScore(distance, s.config.Metric),
			Rank:  len(hits) + 1,
		})
	}

	return hits, nil
}

// Delete removes chunks by id using lazy deletion.
func (s *HNSWChunkIndex) Delete(ctx context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("chunk index is closed")
	}

	for _, id := range chunkIDs {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.chunks, id)
		}
	}
	return nil
}

// Count returns the number of live chunks.
func (s *HNSWChunkIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Dimensions returns the configured embedding dimension.
func (s *HNSWChunkIndex) Dimensions() int {
	return s.config.Dimensions
}

// Save persists the index atomically (temp file + rename).
func (s *HNSWChunkIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("chunk index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

// saveMetadata writes ID mappings and chunk metadata as gob.
func (s *HNSWChunkIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		Chunks:  s.chunks,
		NextKey: s.nextKey,
		Config:  s.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load loads the index from disk.
func (s *HNSWChunkIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("chunk index is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}
	return nil
}

// loadMetadata restores mappings and chunk metadata from gob.
func (s *HNSWChunkIndex) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode index metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.chunks = meta.Chunks
	s.nextKey = meta.NextKey
	s.config = meta.Config
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources.
func (s *HNSWChunkIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance value to a similarity score in [0,1].
func distanceToScore(distance float32, metric string) float64 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + float64(distance))
	default:
		// Cosine distance ranges 0 (identical) to 2 (opposite).
		return 1.0 - float64(distance)/2.0
	}
}
