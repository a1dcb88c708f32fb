package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command with args against an isolated data
// directory and offline static embeddings.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CARA_DATA_DIR", dataDir)
	t.Setenv("CARA_EMBEDDER", "static")

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HelpListsSubcommands(t *testing.T) {
	// Given: the root command
	out, err := execute(t, t.TempDir(), "--help")

	// Then: all subcommands are listed
	require.NoError(t, err)
	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "query")
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "version")
}

func TestStatusCmd_EmptyDataDir(t *testing.T) {
	// Given: a data directory with no index
	dataDir := t.TempDir()

	// When: running status
	out, err := execute(t, dataDir, "status")

	// Then: it reports no index and static embeddings, without failing
	require.NoError(t, err)
	assert.Contains(t, out, "No index found")
	assert.Contains(t, out, "static-hash-v1")
}

func TestIngestAndSearch_Offline(t *testing.T) {
	// Given: a document on disk and an isolated data directory
	dataDir := t.TempDir()
	docsDir := t.TempDir()
	doc := filepath.Join(docsDir, "policy.md")
	content := "The Remote Work Policy allows employees to work from home " +
		"three days per week. Managers approve individual schedules."
	require.NoError(t, os.WriteFile(doc, []byte(content), 0o644))

	// When: ingesting the file
	out, err := execute(t, dataDir, "ingest", doc)
	require.NoError(t, err, out)
	assert.Contains(t, out, "policy.md")

	// Then: the index is persisted
	assert.FileExists(t, filepath.Join(dataDir, "vectors.hnsw"))
	assert.FileExists(t, filepath.Join(dataDir, "graph.db"))

	// And: status reflects the ingested chunks
	var info statusInfo
	statusOut, err := execute(t, dataDir, "status", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(statusOut), &info))
	assert.True(t, info.IndexExists)
	assert.Equal(t, 1, info.Chunks)
	assert.Greater(t, info.GraphNodes, 0)

	// And: search finds the document without any model server
	searchOut, err := execute(t, dataDir, "search", "remote work policy", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, searchOut, "doc_policy_chunk_0")
}

func TestIngestCmd_MissingPath(t *testing.T) {
	// When: ingesting a path that does not exist
	_, err := execute(t, t.TempDir(), "ingest", "/nonexistent/docs")

	// Then: the command fails
	require.Error(t, err)
}
