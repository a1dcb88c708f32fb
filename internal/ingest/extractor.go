package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prajwal-28/context-aware-research-assistant/internal/llm"
	"github.com/prajwal-28/context-aware-research-assistant/internal/store"
)

// Entity is an extracted graph entity candidate.
type Entity struct {
	Kind       store.NodeKind    `json:"type"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Relationship is an extracted entity-to-entity relation candidate.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// EntityExtractor produces entities and relationships from chunk text.
// Extraction failures are not fatal to ingestion: the coordinator logs
// them and continues with whatever was extracted.
type EntityExtractor interface {
	Extract(ctx context.Context, text, chunkID string) ([]Entity, []Relationship, error)
}

// maxExtractionChars bounds the text sent to the model per chunk.
const maxExtractionChars = 4000

// extractionPrompt asks the model for a strict JSON entity listing.
const extractionPrompt = `You are an expert at extracting structured information from documents.

Given the following text chunk, extract entities and relationships.

Entity Types:
- Policy: Policies, rules, regulations mentioned
- Section: Document sections, chapters, parts
- Topic: Main topics or themes discussed
- Concept: Important concepts, ideas, terms

For each entity, provide:
- type: One of Policy, Section, Topic, Concept
- id: A unique identifier (e.g., "policy_maternity_leave", "topic_project_management")
- name: A short descriptive name

For relationships, provide:
- from: Source entity ID
- to: Target entity ID
- type: Relationship type (e.g., "AFFECTS", "RELATES_TO", "CONTAINS", "REFERENCES")

Text chunk:
%s

Return ONLY a valid JSON object with this structure:
{
    "entities": [
        {"type": "Policy", "id": "...", "name": "..."},
        ...
    ],
    "relationships": [
        {"from": "entity_id_1", "to": "entity_id_2", "type": "AFFECTS"},
        ...
    ]
}`

// LLMExtractor extracts entities with a language model.
type LLMExtractor struct {
	completer llm.Completer
	logger    *slog.Logger
}

var _ EntityExtractor = (*LLMExtractor)(nil)

// NewLLMExtractor creates an LLM-backed extractor.
func NewLLMExtractor(completer llm.Completer, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{completer: completer, logger: logger}
}

// extractionResult is the JSON shape the model is asked to return.
type extractionResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Extract asks the model for entities and relationships. Entity ids
// are namespaced per source chunk so chunks never collide on model-
// invented identifiers; display names still merge conceptually via
// relationships.
func (e *LLMExtractor) Extract(ctx context.Context, text, chunkID string) ([]Entity, []Relationship, error) {
	if len(text) > maxExtractionChars {
		text = text[:maxExtractionChars]
	}

	response, err := e.completer.Complete(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return nil, nil, fmt.Errorf("entity extraction completion: %w", err)
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &result); err != nil {
		return nil, nil, fmt.Errorf("entity extraction returned invalid JSON: %w", err)
	}

	entities := make([]Entity, 0, len(result.Entities))
	known := make(map[string]string, len(result.Entities))
	for _, ent := range result.Entities {
		if ent.ID == "" || ent.Name == "" {
			continue
		}
		kind, err := store.ParseNodeKind(string(ent.Kind))
		if err != nil || kind == store.NodeKindDocument || kind == store.NodeKindChunk {
			e.logger.Debug("extraction_entity_skipped",
				slog.String("chunk_id", chunkID),
				slog.String("type", string(ent.Kind)))
			continue
		}
		scoped := chunkID + "_" + ent.ID
		known[ent.ID] = scoped
		ent.ID = scoped
		ent.Kind = kind
		entities = append(entities, ent)
	}

	relationships := make([]Relationship, 0, len(result.Relationships))
	for _, rel := range result.Relationships {
		if rel.From == "" || rel.To == "" {
			continue
		}
		rel.From = resolveEntityID(rel.From, chunkID, known)
		rel.To = resolveEntityID(rel.To, chunkID, known)
		if rel.Type == "" {
			rel.Type = store.RelationRelatesTo
		}
		relationships = append(relationships, rel)
	}

	return entities, relationships, nil
}

// resolveEntityID maps a model-reported id to its chunk-scoped form.
func resolveEntityID(id, chunkID string, known map[string]string) string {
	if scoped, ok := known[id]; ok {
		return scoped
	}
	return chunkID + "_" + id
}

// stripCodeFences unwraps a JSON payload the model wrapped in markdown.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// KeywordExtractor is a deterministic fallback extractor for offline
// use: capitalized multi-word phrases become Topic entities. Much
// coarser than the LLM path but keeps the graph leg of retrieval
// functional without a model.
type KeywordExtractor struct{}

var _ EntityExtractor = (*KeywordExtractor)(nil)

// NewKeywordExtractor creates the fallback extractor.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

// phraseRegex matches runs of capitalized words ("Remote Work Policy").
var phraseRegex = regexp.MustCompile(`(?:[A-Z][a-zA-Z0-9]+)(?:[ \t](?:[A-Z][a-zA-Z0-9]+))+`)

// leadingFillers are sentence starters trimmed off matched phrases.
var leadingFillers = map[string]bool{
	"The": true, "A": true, "An": true, "This": true, "That": true,
	"See": true, "In": true, "On": true, "At": true, "For": true,
}

// Extract emits one Topic per distinct capitalized phrase. Entity ids
// are derived from the lowercased phrase, shared across chunks so the
// same topic links documents together.
func (e *KeywordExtractor) Extract(ctx context.Context, text, chunkID string) ([]Entity, []Relationship, error) {
	seen := make(map[string]struct{})
	var entities []Entity

	for _, phrase := range phraseRegex.FindAllString(text, -1) {
		words := strings.Fields(phrase)
		for len(words) > 0 && leadingFillers[words[0]] {
			words = words[1:]
		}
		if len(words) < 2 {
			continue
		}
		phrase = strings.Join(words, " ")
		id := "topic_" + strings.ReplaceAll(strings.ToLower(phrase), " ", "_")
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		entities = append(entities, Entity{
			Kind: store.NodeKindTopic,
			ID:   id,
			Name: phrase,
		})
	}
	return entities, nil, nil
}
