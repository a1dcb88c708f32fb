package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prajwal-28/context-aware-research-assistant/internal/output"
	"github.com/prajwal-28/context-aware-research-assistant/internal/retrieval"
	"github.com/prajwal-28/context-aware-research-assistant/internal/synthesis"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	topK    int
	maxHops int
	format  string
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question over the ingested documents",
		Long: `Query retrieves relevant context via hybrid retrieval (vector
similarity plus knowledge graph traversal) and synthesizes an answer
with a local LLM.

Examples:
  cara query "what is the remote work policy?"
  cara query "who approves equipment purchases" --top-k 8 --max-hops 3
  cara query "summarize the onboarding process" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of vector results (default from config)")
	cmd.Flags().IntVar(&opts.maxHops, "max-hops", 0, "Graph traversal depth (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runQuery(cmd *cobra.Command, question string, opts queryOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	topK := opts.topK
	if topK == 0 {
		topK = cfg.Retrieval.TopK
	}
	maxHops := opts.maxHops
	if maxHops == 0 {
		maxHops = cfg.Retrieval.MaxHops
	}

	embedder, err := newQueryEmbedder(cmd)
	if err != nil {
		return err
	}
	defer embedder.Close()

	idx, graph, err := openStores(embedder.Dimensions())
	if err != nil {
		return err
	}
	defer idx.Close()
	defer graph.Close()

	completer := newCompleter()
	if !completer.Available(ctx) {
		return fmt.Errorf("Ollama is not reachable; answer synthesis needs a running model server")
	}

	orch := retrieval.NewOrchestrator(idx, graph,
		retrieval.WithFanoutLimit(cfg.Retrieval.FanoutLimit),
		retrieval.WithFetchWorkers(cfg.Retrieval.FetchWorkers),
		retrieval.WithLogger(slog.Default()),
	)

	engine, err := synthesis.NewQueryEngine(synthesis.EngineConfig{
		Retriever:       orch,
		Embedder:        embedder,
		Completer:       completer,
		MaxContextChars: cfg.Synthesis.MaxContextChars,
		Logger:          slog.Default(),
	})
	if err != nil {
		return err
	}

	answer, err := engine.Query(ctx, question, topK, maxHops)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	out.Block(answer.Text)
	if len(answer.Sources) > 0 {
		out.Status("📚", "Sources:")
		for _, src := range answer.Sources {
			out.Statusf("", "- %s (%s)", src.Filename, src.SourceType)
		}
	}
	out.Newline()
	out.Statusf("", "%d context items (%d vector, %d graph) in %s",
		answer.RetrievalInfo.TotalCount,
		answer.RetrievalInfo.VectorCount,
		answer.RetrievalInfo.GraphCount,
		answer.Duration.Round(time.Millisecond))
	return nil
}
