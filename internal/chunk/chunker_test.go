package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c, err := NewChunker(DefaultOptions())
	require.NoError(t, err)

	chunks := c.Split("doc1", "A short policy paragraph.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1_chunk_0", chunks[0].ID)
	assert.Equal(t, "doc1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "A short policy paragraph.", chunks[0].Text)
	assert.Equal(t, "0", chunks[0].Metadata["chunk_index"])
	assert.Equal(t, "1", chunks[0].Metadata["total_chunks"])
}

func TestChunker_EmptyText(t *testing.T) {
	c, err := NewChunker(DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, c.Split("doc1", ""))
	assert.Empty(t, c.Split("doc1", "  \n\t "))
}

func TestChunker_LongTextOverlaps(t *testing.T) {
	// Given text several times the chunk size
	c, err := NewChunker(Options{Size: 100, Overlap: 20})
	require.NoError(t, err)

	sentence := "The corporate network requires multi factor authentication for every remote login session. "
	text := strings.Repeat(sentence, 10)

	chunks := c.Split("doc1", text)

	// Then multiple chunks come back with sequential ids
	require.Greater(t, len(chunks), 3)
	for i, ch := range chunks {
		assert.Equal(t, ChunkID("doc1", i), ch.ID)
		assert.Equal(t, i, ch.Ordinal)
		assert.LessOrEqual(t, len(ch.Text), 100)
		assert.NotEmpty(t, ch.Text)
	}

	// And consecutive chunks share text from the overlap window
	for i := 1; i < len(chunks); i++ {
		head := chunks[i].Text
		if len(head) > 8 {
			head = head[:8]
		}
		assert.Contains(t, chunks[i-1].Text, strings.TrimSpace(head),
			"chunk %d should start inside chunk %d's overlap window", i, i-1)
	}

	// And no text is lost: every sentence word appears somewhere
	var all strings.Builder
	for _, ch := range chunks {
		all.WriteString(ch.Text)
		all.WriteString(" ")
	}
	for _, word := range strings.Fields(sentence) {
		assert.Contains(t, all.String(), word)
	}
}

func TestChunker_BreaksAtSentenceBoundary(t *testing.T) {
	c, err := NewChunker(Options{Size: 100, Overlap: 10})
	require.NoError(t, err)

	text := strings.Repeat("First sentence here. Second sentence follows now. ", 5)
	chunks := c.Split("doc1", text)

	require.Greater(t, len(chunks), 1)
	// Non-final chunks should end at a sentence boundary.
	first := chunks[0].Text
	assert.True(t, strings.HasSuffix(first, "."), "chunk should end at sentence boundary, got %q", first)
}

func TestChunker_Deterministic(t *testing.T) {
	c, err := NewChunker(DefaultOptions())
	require.NoError(t, err)

	text := strings.Repeat("Deterministic chunking produces identical output every run. ", 50)
	a := c.Split("doc1", text)
	b := c.Split("doc1", text)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].Text, b[i].Text)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"too small", Options{Size: 10, Overlap: 0}, true},
		{"negative overlap", Options{Size: 1024, Overlap: -1}, true},
		{"overlap >= size", Options{Size: 100, Overlap: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
