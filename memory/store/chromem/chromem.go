// Package chromem implements memory.Store on chromem-go, a pure Go
// embedded vector database. It is the local SDK backend; production
// deployments can swap in pgvector behind the same interface.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/everkin/kin-go-sdk/memory"
)

// Store keeps one chromem collection per persona for namespace
// isolation.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory chromem-backed store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// getOrCreateCollection returns the persona's collection, creating it
// on first use.
func (s *Store) getOrCreateCollection(personaID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[personaID]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock.
	if col, exists := s.collections[personaID]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		fmt.Sprintf("persona_%s", personaID),
		nil, // No embedding func; embeddings are provided.
		nil, // Default cosine distance.
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[personaID] = col
	return col, nil
}

// Insert persists a record. The write is all-or-nothing: a record
// either lands complete with its embedding and metadata or not at all.
func (s *Store) Insert(ctx context.Context, rec *memory.Record) (*memory.Record, error) {
	if rec.Embedding() == nil {
		return nil, fmt.Errorf("record %s has no embedding", rec.ID)
	}

	col, err := s.getOrCreateCollection(rec.PersonaID)
	if err != nil {
		return nil, err
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding(),
		Metadata:  serializeMetadata(rec),
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}

	log.Printf("[CHROMEM] Stored memory %s (persona=%s, type=%s)", rec.ID, rec.PersonaID, rec.Type)
	return rec, nil
}

// Search returns records whose cosine similarity to the query is at
// least threshold, highest first, at most limit.
func (s *Store) Search(ctx context.Context, personaID string, query []float32, threshold float64, limit int) ([]memory.SearchResult, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = memory.DefaultMaxResults
	}

	col, err := s.getOrCreateCollection(personaID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size; retry with smaller
	// limits until the query fits.
	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		var err error
		results, err = col.QueryEmbedding(ctx, query, currentLimit, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				return nil, nil // Collection is empty.
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	var out []memory.SearchResult
	for i, result := range results {
		similarity := float64(result.Similarity)
		if similarity < threshold {
			continue
		}
		rec, err := deserializeRecord(personaID, result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		out = append(out, memory.SearchResult{Record: rec, Similarity: similarity})
	}

	log.Printf("[CHROMEM] Query for persona=%s matched %d of %d results above %.2f",
		personaID, len(out), len(results), threshold)
	return out, nil
}

// Close releases resources. chromem keeps everything in memory, so
// there is nothing to flush.
func (s *Store) Close() error {
	return nil
}

func serializeMetadata(rec *memory.Record) map[string]string {
	metadata := map[string]string{
		"type":       string(rec.Type),
		"persona_id": rec.PersonaID,
		"importance": strconv.FormatFloat(rec.Importance(), 'f', -1, 64),
		"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	return metadata
}

var reservedKeys = map[string]bool{
	"type":       true,
	"persona_id": true,
	"importance": true,
	"created_at": true,
}

func deserializeRecord(personaID string, result chromem.Result) (*memory.Record, error) {
	importance, err := strconv.ParseFloat(result.Metadata["importance"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse importance: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	metadata := make(map[string]string)
	for k, v := range result.Metadata {
		if !reservedKeys[k] {
			metadata[k] = v
		}
	}

	return memory.RestoreRecord(
		result.ID,
		personaID,
		result.Content,
		memory.Type(result.Metadata["type"]),
		importance,
		result.Embedding,
		metadata,
		createdAt,
	), nil
}

// isInsufficientDocsError checks if the error is chromem complaining
// that nResults exceeds the collection size.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "nResults must be") || strings.Contains(errStr, "number of documents")
}
