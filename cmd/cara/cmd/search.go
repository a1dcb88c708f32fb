package cmd

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prajwal-28/context-aware-research-assistant/internal/output"
	"github.com/prajwal-28/context-aware-research-assistant/internal/retrieval"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK    int
	maxHops int
	format  string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve raw context without answer synthesis",
		Long: `Search runs hybrid retrieval and prints the ranked context bundle:
vector hits first, then graph expansions with hop distance and the
provenance path back to the seed chunk. No LLM is involved.

Examples:
  cara search "expense reimbursement"
  cara search "remote work" --top-k 10 --max-hops 1
  cara search "security policy" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of vector results (default from config)")
	cmd.Flags().IntVar(&opts.maxHops, "max-hops", 0, "Graph traversal depth (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
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

	embedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return err
	}

	orch := retrieval.NewOrchestrator(idx, graph,
		retrieval.WithFanoutLimit(cfg.Retrieval.FanoutLimit),
		retrieval.WithFetchWorkers(cfg.Retrieval.FetchWorkers),
		retrieval.WithLogger(slog.Default()),
	)

	bundle, err := orch.Retrieve(ctx, embedding, query, topK, maxHops)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	}

	printBundle(out, bundle)
	return nil
}

func printBundle(out *output.Writer, bundle *retrieval.ContextBundle) {
	if bundle.TotalCount == 0 {
		out.Warning("No results")
		return
	}

	out.Statusf("🔎", "%d results (%d vector, %d graph)",
		bundle.TotalCount, bundle.VectorCount, bundle.GraphCount)
	out.Newline()

	for i, item := range bundle.Items {
		switch item.SourceType {
		case retrieval.SourceVector:
			out.Statusf("", "%2d. [vector %.3f] %s", i+1, item.Score, item.ID)
			if item.Chunk != nil {
				out.Status("", "    "+snippet(item.Chunk.Text, 120))
			}
		case retrieval.SourceGraph:
			out.Statusf("", "%2d. [graph  %.3f] %s (%s, %d hops)",
				i+1, item.Score, item.ID, item.Node.Kind, item.HopDistance)
			if item.Provenance != nil {
				out.Statusf("", "    via %s", strings.Join(item.Provenance.Path, " -> "))
			}
		}
	}
}

// snippet collapses whitespace and truncates text for display.
func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
