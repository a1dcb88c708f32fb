package synthesis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-28/context-aware-research-assistant/internal/errors"
	"github.com/prajwal-28/context-aware-research-assistant/internal/retrieval"
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

type stubRetriever struct {
	bundle *retrieval.ContextBundle
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, embedding []float32, query string, topK, maxHops int) (*retrieval.ContextBundle, error) {
	return s.bundle, s.err
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type promptCapture struct {
	prompt   string
	response string
	err      error
	calls    int
}

func (p *promptCapture) Complete(ctx context.Context, prompt string) (string, error) {
	p.calls++
	p.prompt = prompt
	return p.response, p.err
}
func (p *promptCapture) Available(ctx context.Context) bool { return true }
func (p *promptCapture) ModelName() string                  { return "stub" }

func testBundle() *retrieval.ContextBundle {
	return &retrieval.ContextBundle{
		Query: "what is the vpn policy",
		Items: []*retrieval.ContextItem{
			{
				ID:         "doc_policy_chunk_0",
				SourceType: retrieval.SourceVector,
				Chunk: &store.Chunk{
					ID:         "doc_policy_chunk_0",
					DocumentID: "doc_policy",
					Text:       "All remote staff must connect through the corporate vpn.",
					Metadata:   map[string]string{"filename": "policy.md", "chunk_index": "0"},
				},
				Score: 0.91,
			},
			{
				ID:         "topic_vpn",
				SourceType: retrieval.SourceGraph,
				Node: &store.GraphNode{
					ID:    "topic_vpn",
					Kind:  store.NodeKindTopic,
					Label: "Corporate Vpn",
				},
				Score:       0.5,
				HopDistance: 1,
			},
		},
		VectorCount: 1,
		GraphCount:  1,
		TotalCount:  2,
	}
}

func newEngine(t *testing.T, r Retriever, c *promptCapture) *QueryEngine {
	t.Helper()
	e, err := NewQueryEngine(EngineConfig{
		Retriever: r,
		Embedder:  stubEmbedder{},
		Completer: c,
	})
	require.NoError(t, err)
	return e
}

func TestQueryEngine_AnswersWithContext(t *testing.T) {
	// Given retrieval context and a model response
	completer := &promptCapture{response: "Use the corporate vpn. [policy.md]"}
	e := newEngine(t, &stubRetriever{bundle: testBundle()}, completer)

	// When querying
	answer, err := e.Query(context.Background(), "what is the vpn policy", 5, 2)

	// Then the prompt carried both context items and the answer cites sources
	require.NoError(t, err)
	assert.Equal(t, "Use the corporate vpn. [policy.md]", answer.Text)
	assert.Contains(t, completer.prompt, "corporate vpn")
	assert.Contains(t, completer.prompt, "[Source 1] From: policy.md")
	assert.Contains(t, completer.prompt, "Entity: Topic - Corporate Vpn")
	assert.Contains(t, completer.prompt, "what is the vpn policy")

	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "policy.md", answer.Sources[0].Filename)
	assert.Equal(t, "vector", answer.Sources[0].SourceType)
	assert.Equal(t, "0", answer.Sources[0].ChunkIndex)

	assert.Equal(t, 1, answer.RetrievalInfo.VectorCount)
	assert.Equal(t, 1, answer.RetrievalInfo.GraphCount)
	assert.Equal(t, 2, answer.RetrievalInfo.TotalCount)
}

func TestQueryEngine_EmptyContextSkipsModel(t *testing.T) {
	// Given retrieval that found nothing
	completer := &promptCapture{response: "should not be used"}
	empty := &retrieval.ContextBundle{Query: "q", Items: []*retrieval.ContextItem{}}
	e := newEngine(t, &stubRetriever{bundle: empty}, completer)

	// When querying
	answer, err := e.Query(context.Background(), "anything", 5, 2)

	// Then the canned answer comes back and the model was never called
	require.NoError(t, err)
	assert.Equal(t, emptyContextAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, completer.calls)
}

func TestQueryEngine_EmptyQueryRejected(t *testing.T) {
	e := newEngine(t, &stubRetriever{bundle: testBundle()}, &promptCapture{})

	_, err := e.Query(context.Background(), "   ", 5, 2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
}

func TestQueryEngine_RetrievalErrorPropagates(t *testing.T) {
	retrErr := errors.RetrievalUnavailable("vector", fmt.Errorf("down"))
	e := newEngine(t, &stubRetriever{err: retrErr}, &promptCapture{})

	_, err := e.Query(context.Background(), "q", 5, 2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRetrievalUnavailable, errors.GetCode(err))
}

func TestQueryEngine_SynthesisFailure(t *testing.T) {
	completer := &promptCapture{err: fmt.Errorf("model crashed")}
	e := newEngine(t, &stubRetriever{bundle: testBundle()}, completer)

	_, err := e.Query(context.Background(), "q", 5, 2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSynthesisFailed, errors.GetCode(err))
}

func TestQueryEngine_TruncatesLongChunks(t *testing.T) {
	// Given a chunk far longer than the context limit
	bundle := testBundle()
	long := ""
	for i := 0; i < 200; i++ {
		long += "0123456789"
	}
	bundle.Items[0].Chunk.Text = long

	completer := &promptCapture{response: "ok"}
	e := newEngine(t, &stubRetriever{bundle: bundle}, completer)

	_, err := e.Query(context.Background(), "q", 5, 2)
	require.NoError(t, err)

	// Then the prompt holds the truncated form, not the full 2000 chars
	assert.Contains(t, completer.prompt, long[:DefaultMaxContextChars]+"...")
	assert.NotContains(t, completer.prompt, long[:DefaultMaxContextChars+10])
}

func TestExtractSources_DedupesByFilename(t *testing.T) {
	bundle := testBundle()
	bundle.Items = append(bundle.Items, &retrieval.ContextItem{
		ID:         "doc_policy_chunk_1",
		SourceType: retrieval.SourceVector,
		Chunk: &store.Chunk{
			ID:       "doc_policy_chunk_1",
			Text:     "more",
			Metadata: map[string]string{"filename": "policy.md", "chunk_index": "1"},
		},
	})

	sources := extractSources(bundle)
	require.Len(t, sources, 1)
	assert.Equal(t, "policy.md", sources[0].Filename)
	assert.Equal(t, "0", sources[0].ChunkIndex)
}
