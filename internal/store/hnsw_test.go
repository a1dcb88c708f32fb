package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunk(id, docID string, ordinal int, text string) *Chunk {
	return &Chunk{
		ID:         id,
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
	}
}

func TestHNSWChunkIndex_AddAndSearch(t *testing.T) {
	// Given an index with a few chunks
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer idx.Close()

	chunks := []*Chunk{
		testChunk("doc1_chunk_0", "doc1", 0, "alpha"),
		testChunk("doc1_chunk_1", "doc1", 1, "beta"),
		testChunk("doc2_chunk_0", "doc2", 0, "gamma"),
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	require.NoError(t, idx.Add(context.Background(), chunks, vectors))

	// When searching near the first vector
	hits, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0, 0}, 2)

	// Then the closest chunk is first, with rank and score populated
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc1_chunk_0", hits[0].Chunk.ID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, 2, hits[1].Rank)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 1.0, hits[0].Score, 0.01)
}

func TestHNSWChunkIndex_SearchEmpty(t *testing.T) {
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWChunkIndex_DimensionMismatch(t *testing.T) {
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Add(context.Background(), []*Chunk{testChunk("c1", "d", 0, "x")}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = idx.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWChunkIndex_ReplaceExisting(t *testing.T) {
	// Given a chunk already indexed
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add(context.Background(),
		[]*Chunk{testChunk("c1", "d", 0, "old text")},
		[][]float32{{1, 0, 0, 0}}))

	// When adding the same id with new content
	require.NoError(t, idx.Add(context.Background(),
		[]*Chunk{testChunk("c1", "d", 0, "new text")},
		[][]float32{{0, 1, 0, 0}}))

	// Then the count stays at one and the new content wins
	assert.Equal(t, 1, idx.Count())
	hits, err := idx.Search(context.Background(), []float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new text", hits[0].Chunk.Text)
}

func TestHNSWChunkIndex_Delete(t *testing.T) {
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add(context.Background(),
		[]*Chunk{testChunk("c1", "d", 0, "one"), testChunk("c2", "d", 1, "two")},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	require.NoError(t, idx.Delete(context.Background(), []string{"c1"}))

	assert.Equal(t, 1, idx.Count())
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "c1", h.Chunk.ID)
	}
}

func TestHNSWChunkIndex_SaveLoad(t *testing.T) {
	// Given a populated index saved to disk
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)

	require.NoError(t, idx.Add(context.Background(),
		[]*Chunk{
			testChunk("doc1_chunk_0", "doc1", 0, "first"),
			testChunk("doc1_chunk_1", "doc1", 1, "second"),
		},
		[][]float32{{1, 0, 0, 0}, {0, 0, 1, 0}}))
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	// When loading into a fresh index
	loaded, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	// Then chunks and vectors survive the round trip
	assert.Equal(t, 2, loaded.Count())
	hits, err := loaded.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1_chunk_0", hits[0].Chunk.ID)
	assert.Equal(t, "first", hits[0].Chunk.Text)
}

func TestHNSWChunkIndex_ClosedOperations(t *testing.T) {
	idx, err := NewHNSWChunkIndex(DefaultChunkIndexConfig(4))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	err = idx.Add(context.Background(), []*Chunk{testChunk("c", "d", 0, "x")}, [][]float32{{1, 0, 0, 0}})
	assert.Error(t, err)
	_, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, idx.Count())
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4, 0, 0}
	normalizeVectorInPlace(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	normalizeVectorInPlace(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
