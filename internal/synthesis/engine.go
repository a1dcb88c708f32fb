// Package synthesis turns retrieval context bundles into cited natural
// language answers using a local language model.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prajwal-28/context-aware-research-assistant/internal/errors"
	"github.com/prajwal-28/context-aware-research-assistant/internal/llm"
	"github.com/prajwal-28/context-aware-research-assistant/internal/retrieval"
)

// DefaultMaxContextChars truncates each context item's text in prompts.
const DefaultMaxContextChars = 500

// emptyContextAnswer is returned without calling the model when
// retrieval found nothing.
const emptyContextAnswer = "I couldn't find relevant information in the documents to answer this question."

// answerPrompt asks the model for a cited answer over the context.
const answerPrompt = `You are a helpful research assistant that answers questions using provided document context.

Your task:
1. Answer the question using the provided context
2. Explain your reasoning briefly
3. Cite which document sections were used

Context from documents:
%s

User question: %s

Provide a comprehensive answer that:
- Directly addresses the question
- Explains the reasoning (2-3 sentences)
- Cites specific document sections/filenames used

Answer:`

// Source is one citation attached to an answer.
type Source struct {
	Filename   string `json:"filename"`
	SourceType string `json:"source_type"`
	ChunkIndex string `json:"chunk_index,omitempty"`
}

// RetrievalInfo reports how much context fed the answer.
type RetrievalInfo struct {
	VectorCount int `json:"vector_results_count"`
	GraphCount  int `json:"graph_context_count"`
	TotalCount  int `json:"total_context_items"`
}

// Answer is the synthesis result handed to the CLI or API layer.
type Answer struct {
	Text          string        `json:"answer"`
	Sources       []Source      `json:"sources"`
	RetrievalInfo RetrievalInfo `json:"retrieval_info"`
	Duration      time.Duration `json:"-"`
}

// Retriever is the retrieval capability synthesis consumes.
type Retriever interface {
	Retrieve(ctx context.Context, queryEmbedding []float32, queryText string, topK, maxHops int) (*retrieval.ContextBundle, error)
}

// QueryEmbedder embeds the query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryEngine answers questions by retrieving hybrid context and
// prompting the model over it.
type QueryEngine struct {
	retriever       Retriever
	embedder        QueryEmbedder
	completer       llm.Completer
	maxContextChars int
	logger          *slog.Logger
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	Retriever Retriever
	Embedder  QueryEmbedder
	Completer llm.Completer

	// MaxContextChars truncates each context item in the prompt.
	MaxContextChars int

	Logger *slog.Logger
}

// NewQueryEngine creates a query engine.
func NewQueryEngine(cfg EngineConfig) (*QueryEngine, error) {
	if cfg.Retriever == nil || cfg.Embedder == nil || cfg.Completer == nil {
		return nil, fmt.Errorf("retriever, embedder, and completer are required")
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QueryEngine{
		retriever:       cfg.Retriever,
		embedder:        cfg.Embedder,
		completer:       cfg.Completer,
		maxContextChars: cfg.MaxContextChars,
		logger:          cfg.Logger,
	}, nil
}

// Query answers a question. Retrieval failures propagate unchanged;
// an empty context yields a canned answer without a model call.
func (e *QueryEngine) Query(ctx context.Context, query string, topK, maxHops int) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	start := time.Now()

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	bundle, err := e.retriever.Retrieve(ctx, embedding, query, topK, maxHops)
	if err != nil {
		return nil, err
	}

	info := RetrievalInfo{
		VectorCount: bundle.VectorCount,
		GraphCount:  bundle.GraphCount,
		TotalCount:  bundle.TotalCount,
	}

	if bundle.TotalCount == 0 {
		return &Answer{
			Text:          emptyContextAnswer,
			Sources:       []Source{},
			RetrievalInfo: info,
			Duration:      time.Since(start),
		}, nil
	}

	prompt := fmt.Sprintf(answerPrompt, e.formatContext(bundle), query)
	text, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSynthesisFailed, "failed to generate answer", err)
	}

	answer := &Answer{
		Text:          strings.TrimSpace(text),
		Sources:       extractSources(bundle),
		RetrievalInfo: info,
		Duration:      time.Since(start),
	}

	e.logger.Info("query_answered",
		slog.Int("context_items", bundle.TotalCount),
		slog.Int("sources", len(answer.Sources)),
		slog.Duration("duration", answer.Duration))

	return answer, nil
}

// formatContext renders the bundle for the prompt, one numbered block
// per item, chunk text truncated to maxContextChars.
func (e *QueryEngine) formatContext(bundle *retrieval.ContextBundle) string {
	var b strings.Builder

	for idx, item := range bundle.Items {
		switch {
		case item.Chunk != nil:
			text := item.Chunk.Text
			if len(text) > e.maxContextChars {
				text = text[:e.maxContextChars] + "..."
			}
			fmt.Fprintf(&b, "[Source %d] From: %s\nRetrieval method: %s\nContent: %s\n\n",
				idx+1, itemFilename(item), item.SourceType, text)

		case item.Node != nil:
			if text, ok := item.Node.Properties["text"]; ok && text != "" {
				if len(text) > e.maxContextChars {
					text = text[:e.maxContextChars] + "..."
				}
				fmt.Fprintf(&b, "[Source %d] From: %s\nRetrieval method: %s\nContent: %s\n\n",
					idx+1, itemFilename(item), item.SourceType, text)
			} else {
				fmt.Fprintf(&b, "[Source %d] Entity: %s - %s\nRetrieval method: %s\n\n",
					idx+1, item.Node.Kind, item.Node.Label, item.SourceType)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// itemFilename pulls the originating filename out of item metadata.
func itemFilename(item *retrieval.ContextItem) string {
	if item.Chunk != nil {
		if f := item.Chunk.Metadata["filename"]; f != "" {
			return f
		}
	}
	if item.Node != nil {
		if f := item.Node.Properties["filename"]; f != "" {
			return f
		}
	}
	return "Unknown"
}

// extractSources dedupes citations by filename, keeping first
// occurrence order (vector sources before graph sources).
func extractSources(bundle *retrieval.ContextBundle) []Source {
	sources := []Source{}
	seen := make(map[string]struct{})

	for _, item := range bundle.Items {
		filename := itemFilename(item)
		if filename == "Unknown" {
			continue
		}
		if _, dup := seen[filename]; dup {
			continue
		}
		seen[filename] = struct{}{}

		src := Source{
			Filename:   filename,
			SourceType: string(item.SourceType),
		}
		if item.Chunk != nil {
			src.ChunkIndex = item.Chunk.Metadata["chunk_index"]
		} else if item.Node != nil {
			src.ChunkIndex = item.Node.Properties["chunk_index"]
		}
		sources = append(sources, src)
	}
	return sources
}
