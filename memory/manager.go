package memory

import (
	"context"
	"fmt"
	"log"

	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/llm"
)

// Config holds the memory subsystem's tunables. Every threshold here
// is policy, not law; the defaults come from observed behavior, not
// proven optima.
type Config struct {
	// Enabled toggles the memory system on/off.
	Enabled bool

	// SimilarityThreshold is the minimum cosine similarity for a
	// record to be considered a retrieval candidate. Default: 0.7.
	SimilarityThreshold float64

	// MaxResults caps how many records a retrieval returns. Default: 15.
	MaxResults int

	// SimilarityWeight and ImportanceWeight are the ranking weights.
	// Defaults: 0.7 / 0.3.
	SimilarityWeight float64
	ImportanceWeight float64

	// DedupThreshold is the similarity above which an extraction
	// candidate counts as a duplicate of an existing record and is
	// discarded. Default: 0.95.
	DedupThreshold float64

	// DefaultImportance is assigned to extracted records when the
	// extraction step proposes none. Default: 0.6.
	DefaultImportance float64
}

// DefaultConfig returns the standard memory configuration.
var DefaultConfig = &Config{
	Enabled:             true,
	SimilarityThreshold: 0.7,
	MaxResults:          15,
	SimilarityWeight:    DefaultSimilarityWeight,
	ImportanceWeight:    DefaultImportanceWeight,
	DedupThreshold:      0.95,
	DefaultImportance:   0.6,
}

// Manager orchestrates memory operations: retrieval for prompt
// composition, manual adds, and post-turn extraction.
type Manager struct {
	store     Store
	embedder  Embedder
	ranker    *Ranker
	extractor *Extractor
	config    *Config
}

// NewManager creates a Manager. generator powers extraction and may be
// nil, in which case RecordExchange becomes a no-op (retrieval and
// manual adds still work).
func NewManager(store Store, embedder Embedder, generator llm.Generator, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	m := &Manager{
		store:    store,
		embedder: embedder,
		ranker:   NewRanker(config.SimilarityWeight, config.ImportanceWeight),
		config:   config,
	}
	if generator != nil {
		m.extractor = NewExtractor(generator, embedder, store, config)
	}
	return m
}

// Ranker exposes the manager's ranker, mainly for tests and callers
// that pre-fetch candidates themselves.
func (m *Manager) Ranker() *Ranker {
	return m.ranker
}

// Retrieve embeds the user message, searches the persona's memory
// bank, and returns the ranked slice of records for prompt injection.
//
// Embedding or search failure returns an error; callers treat it as a
// soft failure and proceed without memories.
func (m *Manager) Retrieve(ctx context.Context, personaID string, userMessage string) ([]*Record, error) {
	if !m.config.Enabled {
		return nil, nil
	}

	query, err := m.embedder.Embed(ctx, userMessage)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := m.store.Search(ctx, personaID, query, m.config.SimilarityThreshold, m.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	ranked := m.ranker.Rank(query, candidates, m.config.MaxResults)
	log.Printf("[MEMORY] Retrieved %d of %d candidates for query: %q",
		len(ranked), len(candidates), truncateLog(userMessage, 50))
	return ranked, nil
}

// Add stores a manually provided memory. Importance is clamped to
// [0, 1]; an invalid type falls back to fact.
func (m *Manager) Add(ctx context.Context, personaID, content string, typ Type, importance float64) (*Record, error) {
	if !m.config.Enabled {
		return nil, fmt.Errorf("memory system disabled")
	}
	if content == "" {
		return nil, fmt.Errorf("empty memory content")
	}

	rec := NewRecord(personaID, content, typ, importance)
	rec.Metadata[MetaSource] = SourceManual

	embedding, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory: %w", err)
	}
	rec.SetEmbedding(embedding)

	stored, err := m.store.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	log.Printf("[MEMORY] Added manual %s memory %s", rec.Type, rec.ID)
	return stored, nil
}

// RecordExchange extracts durable memories from a completed exchange
// and persists them. Failures of individual records are isolated: one
// bad candidate never aborts the rest. The returned error covers only
// whole-extraction failure.
func (m *Manager) RecordExchange(ctx context.Context, personaID, userText, replyText string, assessment emotion.Assessment) error {
	if !m.config.Enabled || m.extractor == nil {
		return nil
	}

	records, err := m.extractor.Extract(ctx, personaID, userText, replyText, assessment)
	if err != nil {
		return fmt.Errorf("extract exchange: %w", err)
	}
	if len(records) == 0 {
		log.Printf("[MEMORY] Nothing worth remembering in this exchange")
		return nil
	}

	stored := 0
	for _, rec := range records {
		if _, err := m.store.Insert(ctx, rec); err != nil {
			log.Printf("[MEMORY] Failed to store extracted memory %s: %v", rec.ID, err)
			continue
		}
		stored++
	}
	log.Printf("[MEMORY] Stored %d/%d extracted memories for persona %s", stored, len(records), personaID)
	return nil
}

func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
