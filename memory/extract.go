package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/llm"
)

// Extractor turns a completed exchange into zero or more durable
// memory records. It runs off the request path, after the reply has
// been delivered.
type Extractor struct {
	generator llm.Generator
	embedder  Embedder
	store     Store
	config    *Config
}

// NewExtractor creates an Extractor. Pass the fast/structured
// generator; extraction never needs creative sampling.
func NewExtractor(generator llm.Generator, embedder Embedder, store Store, config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig
	}
	return &Extractor{
		generator: generator,
		embedder:  embedder,
		store:     store,
		config:    config,
	}
}

const extractPrompt = `Extract durable memories from the exchange below: facts about the user,
shared experiences, stated preferences, and emotionally significant moments.
Only include statements worth remembering weeks from now. Small talk yields nothing.

Respond with a single JSON array and nothing else. Each element:
{"content": "<short standalone statement>", "type": "<fact|experience|preference|emotional>", "importance": <0.0-1.0>}

Return [] if nothing is worth remembering.

Exchange:
User: %s
%s: %s`

// Extract parses the exchange into candidate records, deduplicates
// them against the persona's existing memories, and returns the
// survivors without persisting them.
//
// Candidate failures are isolated: a malformed candidate or a failed
// embedding is logged and skipped, never aborting its siblings. Only
// total generation failure returns an error.
func (e *Extractor) Extract(ctx context.Context, personaID, userText, replyText string, assessment emotion.Assessment) ([]*Record, error) {
	prompt := fmt.Sprintf(extractPrompt, userText, "Companion", replyText)

	out, err := e.generator.Generate(ctx, prompt, core.StructuredSampling)
	if err != nil {
		return nil, fmt.Errorf("extraction generation: %w", err)
	}

	candidates := parseCandidates(out, e.config.DefaultImportance)
	if len(candidates) == 0 {
		return nil, nil
	}

	var records []*Record
	for i, cand := range candidates {
		rec, err := e.materialize(ctx, personaID, cand, assessment)
		if err != nil {
			log.Printf("[EXTRACT] Skipping candidate #%d: %v", i+1, err)
			continue
		}
		if rec == nil {
			// Duplicate of an existing memory.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// candidate is one parsed extraction proposal, pre-validation.
type candidate struct {
	Content    string
	Type       Type
	Importance float64
}

// parseCandidates pulls the JSON array out of model output, tolerating
// code fences and surrounding prose. Malformed elements are dropped.
func parseCandidates(out string, defaultImportance float64) []candidate {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		log.Printf("[EXTRACT] No JSON array in extraction output")
		return nil
	}

	var candidates []candidate
	for _, el := range gjson.Parse(out[start : end+1]).Array() {
		content := strings.TrimSpace(el.Get("content").String())
		if content == "" {
			continue
		}

		typ := Type(strings.ToLower(strings.TrimSpace(el.Get("type").String())))
		if !typ.Valid() {
			typ = TypeFact
		}

		importance := defaultImportance
		if v := el.Get("importance"); v.Exists() && v.Float() >= 0 && v.Float() <= 1 {
			importance = v.Float()
		}

		candidates = append(candidates, candidate{
			Content:    content,
			Type:       typ,
			Importance: importance,
		})
	}
	return candidates
}

// materialize embeds a candidate and checks it against existing
// memories. Returns (nil, nil) for duplicates.
func (e *Extractor) materialize(ctx context.Context, personaID string, cand candidate, assessment emotion.Assessment) (*Record, error) {
	embedding, err := e.embedder.Embed(ctx, cand.Content)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}

	// A near-identical existing memory means this candidate adds
	// nothing; dropping it keeps duplicates from accumulating across
	// repeated conversations.
	existing, err := e.store.Search(ctx, personaID, embedding, e.config.DedupThreshold, 1)
	if err != nil {
		return nil, fmt.Errorf("dedup search: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("[EXTRACT] Duplicate of memory %s (similarity %.3f), discarding: %q",
			existing[0].Record.ID, existing[0].Similarity, truncateLog(cand.Content, 50))
		return nil, nil
	}

	rec := NewRecord(personaID, cand.Content, cand.Type, cand.Importance)
	rec.Metadata[MetaSource] = SourceConversation
	rec.Metadata[MetaEmotion] = string(assessment.Label)
	rec.SetEmbedding(embedding)
	return rec, nil
}
