package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/memory"
	"github.com/everkin/kin-go-sdk/memory/embedder/mock"
	"github.com/everkin/kin-go-sdk/memory/store/chromem"
)

// scriptedGenerator returns a fixed output (or error) for every call.
type scriptedGenerator struct {
	out   string
	err   error
	calls int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, cfg core.SamplingConfig) (string, error) {
	g.calls++
	return g.out, g.err
}

// failingEmbedder fails for one specific text and delegates otherwise.
type failingEmbedder struct {
	inner    memory.Embedder
	failText string
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == f.failText {
		return nil, errors.New("embedder exploded")
	}
	return f.inner.Embed(ctx, text)
}

func (f *failingEmbedder) Dimensions() int { return f.inner.Dimensions() }

func testConfig() *memory.Config {
	return &memory.Config{
		Enabled: true,
		// Mock embeddings of different texts are near-orthogonal, so
		// retrieval tests disable the similarity floor.
		SimilarityThreshold: -1.0,
		MaxResults:          15,
		DedupThreshold:      0.95,
		DefaultImportance:   0.6,
	}
}

func newTestStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestExtractor_TagsAndDefaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	gen := &scriptedGenerator{out: `[
		{"content": "works in software development", "type": "fact", "importance": 0.9},
		{"content": "loves hiking on weekends", "type": "preference"},
		{"content": "adopted a dog last spring", "type": "life-event", "importance": 7.0}
	]`}
	extractor := memory.NewExtractor(gen, mock.New(), store, testConfig())

	records, err := extractor.Extract(ctx, "p1", "guess what happened", "tell me everything!",
		emotion.Assessment{Label: emotion.Excited, Confidence: 0.8})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[0].Importance() != 0.9 {
		t.Errorf("proposed importance not used: got %v", records[0].Importance())
	}
	if records[1].Importance() != 0.6 {
		t.Errorf("missing importance should default to 0.6, got %v", records[1].Importance())
	}
	if records[2].Importance() != 0.6 {
		t.Errorf("out-of-range importance should default to 0.6, got %v", records[2].Importance())
	}
	if records[2].Type != memory.TypeFact {
		t.Errorf("unknown type should coerce to fact, got %s", records[2].Type)
	}

	for _, rec := range records {
		if rec.Metadata[memory.MetaSource] != memory.SourceConversation {
			t.Errorf("record %s missing conversation provenance", rec.ID)
		}
		if rec.Metadata[memory.MetaEmotion] != string(emotion.Excited) {
			t.Errorf("record %s missing exchange emotion tag", rec.ID)
		}
		if rec.Embedding() == nil {
			t.Errorf("record %s has no embedding", rec.ID)
		}
	}
}

func TestExtractor_DiscardsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	embedder := mock.New()
	cfg := testConfig()

	// Seed an existing memory with the exact content the extractor
	// will propose; the mock embedder makes them identical vectors.
	existing := memory.NewRecord("p1", "works in software development", memory.TypeFact, 0.9)
	emb, err := embedder.Embed(ctx, existing.Content)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	existing.SetEmbedding(emb)
	if _, err := store.Insert(ctx, existing); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	gen := &scriptedGenerator{out: `[
		{"content": "works in software development", "type": "fact"},
		{"content": "has a sister in Lisbon", "type": "fact"}
	]`}
	extractor := memory.NewExtractor(gen, embedder, store, cfg)

	records, err := extractor.Extract(ctx, "p1", "u", "r", emotion.NeutralAssessment())
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected duplicate discarded, got %d records", len(records))
	}
	if records[0].Content != "has a sister in Lisbon" {
		t.Errorf("wrong survivor: %q", records[0].Content)
	}
}

func TestExtractor_IsolatesCandidateFailures(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	embedder := &failingEmbedder{inner: mock.New(), failText: "cursed candidate"}

	gen := &scriptedGenerator{out: `[
		{"content": "cursed candidate", "type": "fact"},
		{"content": "fine candidate", "type": "fact"}
	]`}
	extractor := memory.NewExtractor(gen, embedder, store, testConfig())

	records, err := extractor.Extract(ctx, "p1", "u", "r", emotion.NeutralAssessment())
	if err != nil {
		t.Fatalf("one bad candidate aborted extraction: %v", err)
	}
	if len(records) != 1 || records[0].Content != "fine candidate" {
		t.Fatalf("expected the healthy candidate to survive, got %v", records)
	}
}

func TestExtractor_GenerationFailureIsAnError(t *testing.T) {
	store := newTestStore(t)
	gen := &scriptedGenerator{err: errors.New("quota exceeded")}
	extractor := memory.NewExtractor(gen, mock.New(), store, testConfig())

	_, err := extractor.Extract(context.Background(), "p1", "u", "r", emotion.NeutralAssessment())
	if err == nil {
		t.Fatal("expected error on total generation failure")
	}
}

func TestExtractor_GarbageOutputYieldsNothing(t *testing.T) {
	store := newTestStore(t)
	gen := &scriptedGenerator{out: "nothing worth remembering here, friend"}
	extractor := memory.NewExtractor(gen, mock.New(), store, testConfig())

	records, err := extractor.Extract(context.Background(), "p1", "u", "r", emotion.NeutralAssessment())
	if err != nil {
		t.Fatalf("garbage output should not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestManager_RecordExchangeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	embedder := mock.New()
	gen := &scriptedGenerator{out: `[{"content": "plays guitar badly but happily", "type": "fact", "importance": 0.7}]`}
	manager := memory.NewManager(store, embedder, gen, testConfig())

	assessment := emotion.Assessment{Label: emotion.Happy, Confidence: 0.9}
	for i := 0; i < 2; i++ {
		if err := manager.RecordExchange(ctx, "p1", "I tried guitar again", "that's wonderful!", assessment); err != nil {
			t.Fatalf("run %d: record exchange failed: %v", i+1, err)
		}
	}

	// The second run must fully deduplicate: exactly one stored copy.
	query, err := embedder.Embed(ctx, "plays guitar badly but happily")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	results, err := store.Search(ctx, "p1", query, 0.99, 15)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 stored memory after two runs, got %d", len(results))
	}
}

func TestManager_RetrieveRanksSeededMemories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	embedder := mock.New()
	manager := memory.NewManager(store, embedder, nil, testConfig())

	for i, content := range []string{
		"works in software development",
		"has two cats named Pixel and Vector",
		"grew up near the coast",
	} {
		if _, err := manager.Add(ctx, "p1", content, memory.TypeFact, 0.3+float64(i)*0.1); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	records, err := manager.Retrieve(ctx, "p1", "tell me about work")
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected all 3 seeded memories below threshold -1, got %d", len(records))
	}
}

func TestManager_AddClampsImportanceAndTagsProvenance(t *testing.T) {
	ctx := context.Background()
	manager := memory.NewManager(newTestStore(t), mock.New(), nil, testConfig())

	rec, err := manager.Add(ctx, "p1", "allergic to peanuts", memory.TypeFact, 4.2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if rec.Importance() != 1.0 {
		t.Errorf("importance not clamped: %v", rec.Importance())
	}
	if rec.Metadata[memory.MetaSource] != memory.SourceManual {
		t.Errorf("manual provenance missing: %v", rec.Metadata)
	}

	if _, err := manager.Add(ctx, "p1", "", memory.TypeFact, 0.5); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestManager_DisabledIsInert(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Enabled = false
	manager := memory.NewManager(newTestStore(t), mock.New(), nil, cfg)

	records, err := manager.Retrieve(ctx, "p1", "anything")
	if err != nil {
		t.Fatalf("disabled retrieve should not error: %v", err)
	}
	if records != nil {
		t.Errorf("disabled retrieve returned records: %v", records)
	}
	if err := manager.RecordExchange(ctx, "p1", "u", "r", emotion.NeutralAssessment()); err != nil {
		t.Fatalf("disabled record should be a no-op: %v", err)
	}
}

func TestManager_PersonaNamespacing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	embedder := mock.New()
	manager := memory.NewManager(store, embedder, nil, testConfig())

	for i := 0; i < 3; i++ {
		if _, err := manager.Add(ctx, "alice", fmt.Sprintf("alice fact %d", i), memory.TypeFact, 0.5); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if _, err := manager.Add(ctx, "bob", "bob plays chess", memory.TypeFact, 0.5); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	records, err := manager.Retrieve(ctx, "bob", "what do you know")
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	for _, rec := range records {
		if rec.PersonaID != "bob" {
			t.Errorf("bob's retrieval leaked persona %q", rec.PersonaID)
		}
		if rec.Content != "bob plays chess" {
			t.Errorf("unexpected record for bob: %q", rec.Content)
		}
	}
}
