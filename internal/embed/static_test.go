package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given the same text embedded twice
	e := NewStaticEmbedder()
	defer e.Close()

	v1, err := e.Embed(context.Background(), "remote work security policy")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "remote work security policy")
	require.NoError(t, err)

	// Then the vectors are identical
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	v, err := e.Embed(context.Background(), "employees must use the corporate VPN")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestStaticEmbedder_EmptyInput(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	v, err := e.Embed(context.Background(), "   \n\t  ")
	require.NoError(t, err)
	assert.Len(t, v, StaticDimensions)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	// Given three texts, two about the same topic
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	a, err := e.Embed(ctx, "vpn access policy for remote employees")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "remote employees need vpn access")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "quarterly financial revenue projections")
	require.NoError(t, err)

	// Then the related pair scores higher than the unrelated pair
	assert.Greater(t, dot(a, b), dot(a, c))
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, err := e.Embed(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"abc", "bcd"}, extractNgrams("abcd", 3))
	assert.Nil(t, extractNgrams("ab", 3))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum
}
