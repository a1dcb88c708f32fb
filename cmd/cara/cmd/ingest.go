package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prajwal-28/context-aware-research-assistant/internal/chunk"
	"github.com/prajwal-28/context-aware-research-assistant/internal/embed"
	"github.com/prajwal-28/context-aware-research-assistant/internal/ingest"
	"github.com/prajwal-28/context-aware-research-assistant/internal/output"
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
	"github.com/prajwal-28/context-aware-research-assistant/internal/watcher"
)

func newIngestCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a document or directory into the knowledge base",
		Long: `Ingest chunks documents, embeds the chunks into the vector index,
and builds the knowledge graph (documents, chunks, entities).

Supported file types: .txt, .md, .markdown

Examples:
  cara ingest notes.md
  cara ingest ./docs
  cara ingest ./uploads --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep watching the directory for new or changed files")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, watch bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if watch && !info.IsDir() {
		return fmt.Errorf("--watch requires a directory, got file %s", path)
	}

	embedder, err := newQueryEmbedder(cmd)
	if err != nil {
		return err
	}
	defer embedder.Close()
	out.Statusf("📦", "Embedder: %s (%d dimensions)", embedder.ModelName(), embedder.Dimensions())

	idx, graph, err := openStores(embedder.Dimensions())
	if err != nil {
		return err
	}
	defer idx.Close()
	defer graph.Close()

	pipeline, err := buildPipeline(ctx, idx, graph, embedder, out)
	if err != nil {
		return err
	}

	if info.IsDir() {
		results, err := pipeline.IngestDirectory(ctx, path)
		if err != nil {
			return err
		}
		for _, r := range results {
			out.Successf("%s: %d chunks, %d entities, %d relationships",
				r.Filename, r.Chunks, r.Entities, r.Relationships)
		}
		if len(results) == 0 {
			out.Warning("No supported documents found")
		}
	} else {
		r, err := pipeline.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		out.Successf("%s: %d chunks, %d entities, %d relationships",
			r.Filename, r.Chunks, r.Entities, r.Relationships)
	}

	if err := saveIndex(idx); err != nil {
		return err
	}

	if watch {
		return watchDirectory(ctx, out, pipeline, idx, path)
	}
	return nil
}

// watchDirectory blocks, re-ingesting files as they change, until
// interrupted.
func watchDirectory(ctx context.Context, out *output.Writer, pipeline *ingest.Pipeline, idx *store.HNSWChunkIndex, dir string) error {
	debounce := 500 * time.Millisecond
	if d, err := time.ParseDuration(cfg.Ingest.WatchDebounce); err == nil && d > 0 {
		debounce = d
	}

	w := watcher.New(watcher.Options{
		DebounceWindow: debounce,
		Filter: func(name string) bool {
			return ingest.SupportedFile(filepath.Base(name))
		},
	})

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := w.Start(ctx, dir); err != nil {
		return err
	}
	defer w.Stop()

	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", dir)

	for {
		select {
		case <-ctx.Done():
			out.Newline()
			out.Status("", "Stopping watcher")
			return saveIndex(idx)

		case err, ok := <-w.Errors():
			if !ok {
				return saveIndex(idx)
			}
			slog.Warn("watcher error", "error", err)

		case ev, ok := <-w.Events():
			if !ok {
				return saveIndex(idx)
			}
			switch ev.Operation {
			case watcher.OpDelete:
				docID := ingest.DocumentID(ev.Path)
				if err := pipeline.RemoveDocument(ctx, docID); err != nil {
					out.Errorf("remove %s: %v", filepath.Base(ev.Path), err)
					continue
				}
				out.Statusf("🗑️ ", "Removed %s", filepath.Base(ev.Path))
			default:
				r, err := pipeline.IngestFile(ctx, ev.Path)
				if err != nil {
					out.Errorf("ingest %s: %v", filepath.Base(ev.Path), err)
					continue
				}
				out.Successf("%s: %d chunks, %d entities, %d relationships",
					r.Filename, r.Chunks, r.Entities, r.Relationships)
			}
			if err := saveIndex(idx); err != nil {
				slog.Error("failed to save index", "error", err)
			}
		}
	}
}

// buildPipeline assembles the ingest pipeline, preferring LLM entity
// extraction when Ollama is reachable.
func buildPipeline(ctx context.Context, idx store.ChunkIndex, graph store.GraphStore, embedder embed.Embedder, out *output.Writer) (*ingest.Pipeline, error) {
	chunker, err := chunk.NewChunker(chunk.Options{
		Size:    cfg.Ingest.ChunkSize,
		Overlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	var extractor ingest.EntityExtractor
	completer := newCompleter()
	if completer.Available(ctx) {
		out.Statusf("🧠", "Entity extraction: %s via Ollama", completer.ModelName())
		extractor = ingest.NewLLMExtractor(completer, slog.Default())
	} else {
		out.Status("🔑", "Entity extraction: keyword-based (Ollama unreachable)")
		extractor = ingest.NewKeywordExtractor()
	}

	return ingest.NewPipeline(ingest.PipelineConfig{
		Index:     idx,
		Graph:     graph,
		Embedder:  embedder,
		Chunker:   chunker,
		Extractor: extractor,
		LockDir:   cfg.Paths.DataDir,
		Logger:    slog.Default(),
	})
}

// openStores opens the vector index and graph database in the data
// directory, loading a persisted index when one exists.
func openStores(dimensions int) (*store.HNSWChunkIndex, *store.SQLiteGraphStore, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	idx, err := store.NewHNSWChunkIndex(store.DefaultChunkIndexConfig(dimensions))
	if err != nil {
		return nil, nil, err
	}
	if path := cfg.VectorIndexPath(); fileExists(path) {
		if err := idx.Load(path); err != nil {
			return nil, nil, fmt.Errorf("failed to load vector index: %w", err)
		}
		if idx.Dimensions() != dimensions {
			return nil, nil, fmt.Errorf(
				"vector index has %d dimensions but the embedder produces %d; re-ingest with the same embedder or clear %s",
				idx.Dimensions(), dimensions, cfg.Paths.DataDir)
		}
	}

	graph, err := store.NewSQLiteGraphStore(cfg.GraphDBPath())
	if err != nil {
		idx.Close()
		return nil, nil, err
	}
	return idx, graph, nil
}

func saveIndex(idx *store.HNSWChunkIndex) error {
	if err := idx.Save(cfg.VectorIndexPath()); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	return nil
}
