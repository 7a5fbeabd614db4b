package core

import (
	"fmt"
	"sync"
	"time"
)

// DefaultHistoryWindow is the number of recent turns kept in the
// persona's active context window.
const DefaultHistoryWindow = 10

// Persona is the identity the engine speaks as: who it is, how it
// talks, and what it remembers having just said.
//
// The persona is owned by the caller. The engine holds a read/update
// view: it reads identity fields and appends to the bounded history
// window, but never deletes the persona or rewrites its identity.
//
// The history window is safe for concurrent turns against the same
// persona: appends happen under an internal lock so interleaved
// requests cannot corrupt the user/persona turn ordering.
type Persona struct {
	// ID namespaces the persona's memory bank.
	ID string

	// Name is how the persona refers to itself.
	Name string

	// Relationship describes who the persona is to the user
	// (e.g. "close friend", "grandmother").
	Relationship string

	// Personality is a free-text trait description.
	Personality string

	// Phrases are characteristic expressions the persona uses.
	Phrases []string

	// HistoryWindow bounds the active context window. Zero means
	// DefaultHistoryWindow.
	HistoryWindow int

	mu      sync.Mutex
	history []Turn
}

// Validate checks that the persona carries the identity fields the
// engine needs before any external calls are made.
func (p *Persona) Validate() error {
	if p == nil {
		return &ValidationError{Field: "persona", Reason: "nil persona"}
	}
	if p.ID == "" {
		return &ValidationError{Field: "ID", Reason: "missing persona ID"}
	}
	if p.Name == "" {
		return &ValidationError{Field: "Name", Reason: "missing persona name"}
	}
	if p.Relationship == "" {
		return &ValidationError{Field: "Relationship", Reason: "missing relationship"}
	}
	return nil
}

// AppendExchange atomically appends one user turn and one persona
// turn, then trims the window. Both turns land together so concurrent
// turns against the same persona can never interleave halves of two
// exchanges.
func (p *Persona) AppendExchange(userText, personaText string) {
	now := time.Now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history,
		Turn{Role: RoleUser, Text: userText, Timestamp: now},
		Turn{Role: RolePersona, Text: personaText, Timestamp: now},
	)

	window := p.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(p.history) > window {
		// Keep the tail; copy so the backing array doesn't pin old turns.
		trimmed := make([]Turn, window)
		copy(trimmed, p.history[len(p.history)-window:])
		p.history = trimmed
	}
}

// RecentTurns returns a snapshot of the active history window,
// oldest first.
func (p *Persona) RecentTurns() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Turn, len(p.history))
	copy(out, p.history)
	return out
}

// RestoreHistory seeds the window from persisted turns (oldest first).
// Intended for callers rehydrating a persona from storage.
func (p *Persona) RestoreHistory(turns []Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	window := p.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	p.history = make([]Turn, len(turns))
	copy(p.history, turns)
}

// ValidationError reports a malformed persona or request. It is the
// only error class surfaced synchronously to conversational callers;
// everything else degrades.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid persona: %s (%s)", e.Reason, e.Field)
}
