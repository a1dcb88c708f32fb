package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts calls through to the static embedder.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int64
	batchCalls int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&c.embedCalls, 1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&c.batchCalls, 1)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	// Given a cached embedder over a counting inner embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	e := NewCachedEmbedder(inner, 10)
	defer e.Close()
	ctx := context.Background()

	// When embedding the same text twice
	v1, err := e.Embed(ctx, "vpn policy")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "vpn policy")
	require.NoError(t, err)

	// Then only one call reached the inner embedder
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&inner.embedCalls))
}

func TestCachedEmbedder_BatchPartialHits(t *testing.T) {
	// Given one text already cached
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	e := NewCachedEmbedder(inner, 10)
	defer e.Close()
	ctx := context.Background()

	cached, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)

	// When batch embedding a mix of cached and new texts
	vecs, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Then the cached slot is reused and positions line up
	assert.Equal(t, cached, vecs[0])
	direct, err := NewStaticEmbedder().Embed(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, direct, vecs[2])
	assert.Equal(t, int64(1), atomic.LoadInt64(&inner.batchCalls))
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	e := NewCachedEmbedder(NewStaticEmbedder(), 10)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCachedEmbedder_Delegation(t *testing.T) {
	e := NewCachedEmbedder(NewStaticEmbedder(), 10)
	defer e.Close()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static-hash-v1", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}
