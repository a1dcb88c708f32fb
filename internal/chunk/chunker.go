// Package chunk splits document text into overlapping chunks for
// embedding and indexing. Chunk ids are deterministic so re-ingesting
// a document overwrites its previous chunks in place.
package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// Chunking defaults. Character-based sizes; roughly 4 chars per token.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 200
	MinChunkSize        = 64
)

// Options configures the overlap chunker.
type Options struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is how many characters consecutive chunks share.
	Overlap int
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Validate checks chunking parameters.
func (o Options) Validate() error {
	if o.Size < MinChunkSize {
		return fmt.Errorf("chunk size %d below minimum %d", o.Size, MinChunkSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", o.Overlap)
	}
	if o.Overlap >= o.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", o.Overlap, o.Size)
	}
	return nil
}

// Chunker splits text into fixed-size overlapping chunks, preferring
// to break at sentence or word boundaries near the size limit.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker with the given options.
func NewChunker(opts Options) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// ChunkID returns the deterministic id for a chunk of a document.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, ordinal)
}

// Split chunks text for a document. Whitespace-only text produces no
// chunks. Each chunk carries its position metadata.
func (c *Chunker) Split(documentID, text string) []*store.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var pieces []string

	start := 0
	for start < len(runes) {
		end := start + c.opts.Size
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}

		// Prefer breaking at a boundary within the last fifth of the
		// window so chunks do not cut words mid-way.
		cut := boundaryBefore(runes, start+c.opts.Size*4/5, end)
		pieces = append(pieces, string(runes[start:cut]))

		// Next chunk begins Overlap characters before the cut.
		next := cut - c.opts.Overlap
		if next <= start {
			next = start + (c.opts.Size - c.opts.Overlap)
		}
		start = next
	}

	chunks := make([]*store.Chunk, 0, len(pieces))
	total := strconv.Itoa(len(pieces))
	for i, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, &store.Chunk{
			ID:         ChunkID(documentID, i),
			DocumentID: documentID,
			Ordinal:    i,
			Text:       piece,
			Metadata: map[string]string{
				"chunk_index":  strconv.Itoa(i),
				"total_chunks": total,
			},
		})
	}
	return chunks
}

// boundaryBefore finds the best break position in (min, max]: sentence
// end first, then any whitespace, else max.
func boundaryBefore(runes []rune, min, max int) int {
	for i := max - 1; i > min; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	for i := max - 1; i > min; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return max
}
