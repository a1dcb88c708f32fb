package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// cannedCompleter returns a fixed response for every prompt.
type cannedCompleter struct {
	response string
	err      error
}

func (c *cannedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, c.err
}
func (c *cannedCompleter) Available(ctx context.Context) bool { return c.err == nil }
func (c *cannedCompleter) ModelName() string                  { return "canned" }

const extractionJSON = `{
	"entities": [
		{"type": "Policy", "id": "policy_remote_work", "name": "Remote Work Policy"},
		{"type": "Topic", "id": "topic_security", "name": "Security"}
	],
	"relationships": [
		{"from": "policy_remote_work", "to": "topic_security", "type": "AFFECTS"}
	]
}`

func TestLLMExtractor_ParsesResponse(t *testing.T) {
	// Given a model returning well-formed JSON
	e := NewLLMExtractor(&cannedCompleter{response: extractionJSON}, nil)

	// When extracting from a chunk
	entities, relationships, err := e.Extract(context.Background(), "some text", "doc1_chunk_0")

	// Then entities come back chunk-scoped with parsed kinds
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "doc1_chunk_0_policy_remote_work", entities[0].ID)
	assert.Equal(t, store.NodeKindPolicy, entities[0].Kind)
	assert.Equal(t, "Remote Work Policy", entities[0].Name)
	assert.Equal(t, store.NodeKindTopic, entities[1].Kind)

	require.Len(t, relationships, 1)
	assert.Equal(t, "doc1_chunk_0_policy_remote_work", relationships[0].From)
	assert.Equal(t, "doc1_chunk_0_topic_security", relationships[0].To)
	assert.Equal(t, "AFFECTS", relationships[0].Type)
}

func TestLLMExtractor_StripsMarkdownFences(t *testing.T) {
	wrapped := "Here you go:\n```json\n" + extractionJSON + "\n```\nDone."
	e := NewLLMExtractor(&cannedCompleter{response: wrapped}, nil)

	entities, _, err := e.Extract(context.Background(), "text", "c1")
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestLLMExtractor_InvalidJSON(t *testing.T) {
	e := NewLLMExtractor(&cannedCompleter{response: "I could not find any entities."}, nil)

	_, _, err := e.Extract(context.Background(), "text", "c1")
	assert.Error(t, err)
}

func TestLLMExtractor_CompletionError(t *testing.T) {
	e := NewLLMExtractor(&cannedCompleter{err: fmt.Errorf("model unavailable")}, nil)

	_, _, err := e.Extract(context.Background(), "text", "c1")
	assert.Error(t, err)
}

func TestLLMExtractor_SkipsInvalidEntities(t *testing.T) {
	// Given a response with unknown kinds and reserved kinds
	response := `{
		"entities": [
			{"type": "Alien", "id": "x", "name": "X"},
			{"type": "Document", "id": "d", "name": "D"},
			{"type": "Concept", "id": "", "name": "empty id"},
			{"type": "Concept", "id": "ok", "name": "Kept"}
		],
		"relationships": []
	}`
	e := NewLLMExtractor(&cannedCompleter{response: response}, nil)

	entities, _, err := e.Extract(context.Background(), "text", "c1")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "c1_ok", entities[0].ID)
}

func TestLLMExtractor_DefaultRelationType(t *testing.T) {
	response := `{
		"entities": [
			{"type": "Concept", "id": "a", "name": "A"},
			{"type": "Concept", "id": "b", "name": "B"}
		],
		"relationships": [{"from": "a", "to": "b", "type": ""}]
	}`
	e := NewLLMExtractor(&cannedCompleter{response: response}, nil)

	_, relationships, err := e.Extract(context.Background(), "text", "c1")
	require.NoError(t, err)
	require.Len(t, relationships, 1)
	assert.Equal(t, store.RelationRelatesTo, relationships[0].Type)
}

func TestKeywordExtractor_CapitalizedPhrases(t *testing.T) {
	e := NewKeywordExtractor()

	text := "The Remote Work Policy requires Multi Factor Authentication. " +
		"See the Remote Work Policy for details about vpn usage."
	entities, relationships, err := e.Extract(context.Background(), text, "c1")

	require.NoError(t, err)
	assert.Empty(t, relationships)
	require.Len(t, entities, 2)
	assert.Equal(t, "topic_remote_work_policy", entities[0].ID)
	assert.Equal(t, "Remote Work Policy", entities[0].Name)
	assert.Equal(t, store.NodeKindTopic, entities[0].Kind)
	assert.Equal(t, "topic_multi_factor_authentication", entities[1].ID)
}

func TestKeywordExtractor_SharedIDsAcrossChunks(t *testing.T) {
	// The same phrase in different chunks maps to the same entity id,
	// which is what links documents together in the graph.
	e := NewKeywordExtractor()

	a, _, err := e.Extract(context.Background(), "We discuss Remote Work here.", "c1")
	require.NoError(t, err)
	b, _, err := e.Extract(context.Background(), "More about Remote Work there.", "c2")
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
