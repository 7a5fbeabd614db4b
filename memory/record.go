package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies what kind of knowledge a memory holds.
type Type string

const (
	TypeFact       Type = "fact"
	TypeExperience Type = "experience"
	TypePreference Type = "preference"
	TypeEmotional  Type = "emotional"
)

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	switch t {
	case TypeFact, TypeExperience, TypePreference, TypeEmotional:
		return true
	}
	return false
}

// Provenance values stored under MetaSource.
const (
	SourceManual       = "manual"
	SourceConversation = "conversation"
)

// Well-known metadata keys.
const (
	// MetaSource records how the memory was created (manual add vs
	// extracted from conversation).
	MetaSource = "source"

	// MetaEmotion records the detected emotion of the exchange a
	// memory was extracted from.
	MetaEmotion = "emotion"
)

// Record is a single durable memory belonging to exactly one persona.
//
// Invariants: the embedding is immutable once computed; importance may
// be re-scored but always stays inside [0, 1]. Records are never
// mutated otherwise.
type Record struct {
	ID        string
	PersonaID string
	Content   string
	Type      Type

	importance float64
	embedding  []float32

	// Metadata is free-form; provenance lives under MetaSource and,
	// for extracted memories, the exchange emotion under MetaEmotion.
	Metadata map[string]string

	CreatedAt time.Time
}

// NewRecord creates a memory record with a fresh identity. Importance
// is clamped to [0, 1] and an invalid type falls back to TypeFact.
func NewRecord(personaID, content string, typ Type, importance float64) *Record {
	if !typ.Valid() {
		typ = TypeFact
	}
	return &Record{
		ID:         uuid.New().String(),
		PersonaID:  personaID,
		Content:    content,
		Type:       typ,
		importance: clampImportance(importance),
		Metadata:   make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}

// Importance returns the salience score in [0, 1].
func (r *Record) Importance() float64 {
	return r.importance
}

// SetImportance re-scores the record, clamped to [0, 1]. Re-scoring is
// idempotent and order-independent; it is the only permitted mutation
// besides setting the embedding once.
func (r *Record) SetImportance(v float64) {
	r.importance = clampImportance(v)
}

// Embedding returns the record's vector, or nil if not yet computed.
func (r *Record) Embedding() []float32 {
	return r.embedding
}

// SetEmbedding sets the vector exactly once; later calls are ignored
// because embeddings are immutable after computation.
func (r *Record) SetEmbedding(emb []float32) {
	if r.embedding != nil {
		return
	}
	r.embedding = emb
}

// Format renders the record as a short natural-language fact for
// prompt injection.
func (r *Record) Format() string {
	switch r.Type {
	case TypePreference:
		return fmt.Sprintf("They have a preference: %s", r.Content)
	case TypeExperience:
		return fmt.Sprintf("Shared experience: %s", r.Content)
	case TypeEmotional:
		return fmt.Sprintf("Emotionally significant: %s", r.Content)
	default:
		return r.Content
	}
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RestoreRecord rebuilds a record from persisted fields. Store
// implementations use this when deserializing; it performs the same
// clamping as NewRecord but keeps the stored identity and timestamps.
func RestoreRecord(
	id string,
	personaID string,
	content string,
	typ Type,
	importance float64,
	embedding []float32,
	metadata map[string]string,
	createdAt time.Time,
) *Record {
	if !typ.Valid() {
		typ = TypeFact
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Record{
		ID:         id,
		PersonaID:  personaID,
		Content:    content,
		Type:       typ,
		importance: clampImportance(importance),
		embedding:  embedding,
		Metadata:   metadata,
		CreatedAt:  createdAt,
	}
}
