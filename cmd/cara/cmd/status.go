package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/prajwal-28/context-aware-research-assistant/internal/output"
)

// statusInfo is the machine-readable status payload.
type statusInfo struct {
	DataDir         string `json:"data_dir"`
	IndexExists     bool   `json:"index_exists"`
	Chunks          int    `json:"chunks"`
	Dimensions      int    `json:"dimensions"`
	GraphNodes      int    `json:"graph_nodes"`
	GraphEdges      int    `json:"graph_edges"`
	Embedder        string `json:"embedder"`
	OllamaAvailable bool   `json:"ollama_available"`
	SynthesisModel  string `json:"synthesis_model"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base health and statistics",
		Long: `Display information about the knowledge base:
  - Vector index size and dimensions
  - Knowledge graph node and edge counts
  - Embedder and model server availability`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	info := statusInfo{
		DataDir:        cfg.Paths.DataDir,
		SynthesisModel: cfg.Synthesis.Model,
	}

	embedder, err := newQueryEmbedder(cmd)
	if err != nil {
		return err
	}
	defer embedder.Close()
	info.Embedder = embedder.ModelName()
	info.Dimensions = embedder.Dimensions()

	completer := newCompleter()
	info.OllamaAvailable = completer.Available(ctx)

	info.IndexExists = fileExists(cfg.VectorIndexPath())
	if info.IndexExists || fileExists(cfg.GraphDBPath()) {
		idx, graph, err := openStores(embedder.Dimensions())
		if err != nil {
			return err
		}
		defer idx.Close()
		defer graph.Close()

		info.Chunks = idx.Count()
		if n, err := graph.NodeCount(ctx); err == nil {
			info.GraphNodes = n
		}
		if n, err := graph.EdgeCount(ctx); err == nil {
			info.GraphEdges = n
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out.Statusf("📂", "Data directory: %s", info.DataDir)
	if !info.IndexExists {
		out.Warning("No index found. Run 'cara ingest <path>' first.")
	} else {
		out.Statusf("🧮", "Vector index: %d chunks (%d dimensions)", info.Chunks, info.Dimensions)
		out.Statusf("🕸️ ", "Knowledge graph: %d nodes, %d edges", info.GraphNodes, info.GraphEdges)
	}
	out.Statusf("📦", "Embedder: %s", info.Embedder)
	if info.OllamaAvailable {
		out.Successf("Ollama reachable (synthesis model: %s)", info.SynthesisModel)
	} else {
		out.Warning("Ollama unreachable: queries will fail, ingest falls back to keyword extraction")
	}

	if _, err := os.Stat(cfg.ConfigPath()); os.IsNotExist(err) {
		out.Statusf("", "Config: defaults (no %s)", cfg.ConfigPath())
	} else {
		out.Statusf("", "Config: %s", cfg.ConfigPath())
	}
	return nil
}
