// Package ingest coordinates the document ingestion pipeline: text
// extraction, chunking, embedding, vector indexing, and knowledge
// graph construction. Retrieval consumes what this package writes.
package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prajwal-28/context-aware-research-assistant/internal/chunk"
	"github.com/prajwal-28/context-aware-research-assistant/internal/embed"
	"github.com/prajwal-28/context-aware-research-assistant/internal/errors"
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// Result summarizes one document ingestion.
type Result struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	Chunks        int    `json:"chunks"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
}

// Pipeline wires the ingestion stages together. One Pipeline serves
// the whole process; cross-process exclusion uses the ingest file lock.
type Pipeline struct {
	index     store.ChunkIndex
	graph     store.GraphStore
	embedder  embed.Embedder
	chunker   *chunk.Chunker
	extractor EntityExtractor
	lock      *FileLock
	workers   int
	logger    *slog.Logger
}

// PipelineConfig configures pipeline construction.
type PipelineConfig struct {
	Index     store.ChunkIndex
	Graph     store.GraphStore
	Embedder  embed.Embedder
	Chunker   *chunk.Chunker
	Extractor EntityExtractor

	// LockDir is where the ingest lock file lives; empty disables
	// cross-process locking (tests).
	LockDir string

	// Workers bounds concurrent entity extraction calls.
	Workers int

	Logger *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Index == nil || cfg.Graph == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("index, graph, and embedder are required")
	}
	if cfg.Chunker == nil {
		c, err := chunk.NewChunker(chunk.DefaultOptions())
		if err != nil {
			return nil, err
		}
		cfg.Chunker = c
	}
	if cfg.Extractor == nil {
		cfg.Extractor = NewKeywordExtractor()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pipeline{
		index:     cfg.Index,
		graph:     cfg.Graph,
		embedder:  cfg.Embedder,
		chunker:   cfg.Chunker,
		extractor: cfg.Extractor,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}
	if cfg.LockDir != "" {
		p.lock = NewFileLock(cfg.LockDir)
	}
	return p, nil
}

// docIDPattern strips everything that is not filesystem and id safe.
var docIDPattern = regexp.MustCompile(`[^a-z0-9_-]+`)

// DocumentID derives the stable document id from a file name.
func DocumentID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = docIDPattern.ReplaceAllString(strings.ToLower(stem), "_")
	return "doc_" + strings.Trim(stem, "_")
}

// IngestFile ingests a single text or markdown file. Re-ingesting the
// same file replaces its previous chunks and graph nodes.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read %s", path), err)
	}
	return p.IngestText(ctx, DocumentID(path), filepath.Base(path), string(data))
}

// IngestDirectory ingests every supported file in dir, continuing past
// per-file failures. Returns the successful results.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read directory %s", dir), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !SupportedFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var results []*Result
	for _, name := range names {
		res, err := p.IngestFile(ctx, filepath.Join(dir, name))
		if err != nil {
			p.logger.Error("ingest_file_failed",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// SupportedFile reports whether a file name has an ingestable extension.
func SupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// IngestText runs the full pipeline for one document's text.
func (p *Pipeline) IngestText(ctx context.Context, docID, filename, text string) (*Result, error) {
	if p.lock != nil {
		acquired, err := p.lock.TryLock()
		if err != nil {
			return nil, errors.New(errors.ErrCodeIngestFailed, "ingest lock error", err)
		}
		if !acquired {
			return nil, errors.New(errors.ErrCodeIngestLocked,
				"another ingest is in progress", nil)
		}
		defer func() { _ = p.lock.Unlock() }()
	}

	runID := uuid.NewString()
	log := p.logger.With(slog.String("run_id", runID), slog.String("document_id", docID))
	log.Info("ingest_started", slog.String("filename", filename))

	// Clear any previous version of this document first so shrunk
	// documents leave no stale chunks behind.
	if err := p.removeDocument(ctx, docID); err != nil {
		return nil, errors.New(errors.ErrCodeIngestFailed, "failed to clear previous version", err)
	}

	chunks := p.chunker.Split(docID, text)
	if len(chunks) == 0 {
		return nil, errors.InvalidParameter(fmt.Sprintf("document %s has no text content", filename))
	}
	for _, c := range chunks {
		c.Metadata["filename"] = filename
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("failed to embed %d chunks", len(chunks)), err)
	}

	if err := p.index.Add(ctx, chunks, vectors); err != nil {
		return nil, errors.New(errors.ErrCodeIngestFailed, "failed to index chunks", err)
	}

	if err := p.writeGraph(ctx, docID, filename, chunks, log); err != nil {
		return nil, err
	}

	entities, relationships, err := p.extractEntities(ctx, chunks, log)
	if err != nil {
		return nil, err
	}

	log.Info("ingest_complete",
		slog.Int("chunks", len(chunks)),
		slog.Int("entities", entities),
		slog.Int("relationships", relationships))

	return &Result{
		DocumentID:    docID,
		Filename:      filename,
		Chunks:        len(chunks),
		Entities:      entities,
		Relationships: relationships,
	}, nil
}

// writeGraph creates the document node, chunk nodes, and containment
// edges. Chunk nodes carry their text so graph-discovered chunks can
// be rendered without a second index lookup.
func (p *Pipeline) writeGraph(ctx context.Context, docID, filename string, chunks []*store.Chunk, log *slog.Logger) error {
	doc := &store.GraphNode{
		ID:    docID,
		Kind:  store.NodeKindDocument,
		Label: filename,
		Properties: map[string]string{
			"filename":     filename,
			"total_chunks": strconv.Itoa(len(chunks)),
		},
	}
	if err := p.graph.PutNode(ctx, doc); err != nil {
		return errors.New(errors.ErrCodeIngestFailed, "failed to write document node", err)
	}

	for _, c := range chunks {
		node := &store.GraphNode{
			ID:    c.ID,
			Kind:  store.NodeKindChunk,
			Label: c.ID,
			Properties: map[string]string{
				"text":        c.Text,
				"chunk_index": strconv.Itoa(c.Ordinal),
				"filename":    filename,
			},
		}
		if err := p.graph.PutNode(ctx, node); err != nil {
			return errors.New(errors.ErrCodeIngestFailed, "failed to write chunk node", err)
		}
		edge := &store.GraphEdge{
			SourceID: c.ID,
			TargetID: docID,
			Relation: store.RelationBelongsTo,
		}
		if err := p.graph.PutEdge(ctx, edge); err != nil {
			return errors.New(errors.ErrCodeIngestFailed, "failed to write containment edge", err)
		}
	}
	return nil
}

// chunkExtraction collects one chunk's extraction output.
type chunkExtraction struct {
	entities      []Entity
	relationships []Relationship
}

// extractEntities runs entity extraction per chunk (concurrently up to
// the worker limit) and writes graph nodes and edges sequentially in
// chunk order, so graph insertion order stays deterministic. A failed
// extraction is logged and skipped, never fatal.
func (p *Pipeline) extractEntities(ctx context.Context, chunks []*store.Chunk, log *slog.Logger) (int, int, error) {
	extractions := make([]chunkExtraction, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range chunks {
		g.Go(func() error {
			entities, relationships, err := p.extractor.Extract(gctx, c.Text, c.ID)
			if err != nil {
				log.Warn("entity_extraction_failed",
					slog.String("chunk_id", c.ID),
					slog.String("error", err.Error()))
				return nil
			}
			extractions[i] = chunkExtraction{entities: entities, relationships: relationships}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, errors.New(errors.ErrCodeIngestFailed, "entity extraction aborted", err)
	}

	entityCount := 0
	relationCount := 0
	for i, c := range chunks {
		for _, ent := range extractions[i].entities {
			node := &store.GraphNode{
				ID:         ent.ID,
				Kind:       ent.Kind,
				Label:      ent.Name,
				Properties: ent.Properties,
			}
			if err := p.graph.PutNode(ctx, node); err != nil {
				return 0, 0, errors.New(errors.ErrCodeIngestFailed, "failed to write entity node", err)
			}
			mention := &store.GraphEdge{
				SourceID: c.ID,
				TargetID: ent.ID,
				Relation: store.RelationMentions,
			}
			if err := p.graph.PutEdge(ctx, mention); err != nil {
				return 0, 0, errors.New(errors.ErrCodeIngestFailed, "failed to write mention edge", err)
			}
			entityCount++
		}
	}

	// Relationships go last so both endpoints exist.
	for _, ext := range extractions {
		for _, rel := range ext.relationships {
			edge := &store.GraphEdge{
				SourceID: rel.From,
				TargetID: rel.To,
				Relation: rel.Type,
			}
			if err := p.graph.PutEdge(ctx, edge); err != nil {
				return 0, 0, errors.New(errors.ErrCodeIngestFailed, "failed to write relationship edge", err)
			}
			relationCount++
		}
	}

	return entityCount, relationCount, nil
}

// removeDocument deletes a document's chunks from the vector index and
// its nodes and edges from the graph. Chunk ids are sequential, so
// probing the graph finds the previous chunk count.
func (p *Pipeline) removeDocument(ctx context.Context, docID string) error {
	var chunkIDs []string
	for i := 0; ; i++ {
		id := chunk.ChunkID(docID, i)
		if _, err := p.graph.GetNode(ctx, id); err != nil {
			if stderrors.Is(err, store.ErrNodeNotFound) {
				break
			}
			return err
		}
		chunkIDs = append(chunkIDs, id)
	}

	if len(chunkIDs) > 0 {
		if err := p.index.Delete(ctx, chunkIDs); err != nil {
			return err
		}
	}
	return p.graph.DeleteDocument(ctx, docID)
}

// RemoveDocument deletes a document entirely.
func (p *Pipeline) RemoveDocument(ctx context.Context, docID string) error {
	if err := p.removeDocument(ctx, docID); err != nil {
		return errors.New(errors.ErrCodeIngestFailed,
			fmt.Sprintf("failed to remove document %s", docID), err)
	}
	return nil
}
