// Package engine orchestrates a conversational turn: classify the
// user's emotion, retrieve relevant memories, compose a bounded
// prompt, generate the persona's reply, and hand the finished exchange
// to background memory extraction.
//
// Per-turn state machine:
//
//	Idle -> EmotionPending / MemoryQuery (concurrent, both read-only)
//	     -> Composing -> Generating -> Delivered -> Extracting -> Idle
//
// Delivered is the terminal success state for the caller; Extracting
// happens after delivery and never blocks the returned reply. Every
// step except Generating fails soft, and even Generating degrades to a
// placeholder reply rather than surfacing an error.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/llm"
	"github.com/everkin/kin-go-sdk/memory"
	"github.com/everkin/kin-go-sdk/prompt"
)

// State names a stage of the per-turn state machine. States are logged
// for observability; the engine holds no cross-turn state besides the
// extraction queue.
type State string

const (
	StateIdle           State = "idle"
	StateEmotionPending State = "emotion_pending"
	StateMemoryQuery    State = "memory_query"
	StateComposing      State = "composing"
	StateGenerating     State = "generating"
	StateDelivered      State = "delivered"
	StateExtracting     State = "extracting"
)

// Classifier is the emotion-classification capability the engine
// consumes. *emotion.Classifier satisfies it; tests may substitute
// scripted doubles.
type Classifier interface {
	Classify(ctx context.Context, userText string) emotion.Assessment
}

// Config holds engine settings.
type Config struct {
	// GenerateTimeout bounds the reply generation call. Default: 30s.
	GenerateTimeout time.Duration

	// ExtractWorkers is the size of the background extraction pool.
	// Default: 2.
	ExtractWorkers int

	// ExtractQueueSize bounds pending extraction jobs. Default: 64.
	ExtractQueueSize int

	// ExtractTimeout bounds each background extraction job. Default: 45s.
	ExtractTimeout time.Duration
}

// DefaultConfig returns standard engine settings.
var DefaultConfig = &Config{
	GenerateTimeout:  30 * time.Second,
	ExtractWorkers:   2,
	ExtractQueueSize: 64,
	ExtractTimeout:   45 * time.Second,
}

// Engine is the conversation orchestrator.
type Engine struct {
	generator  llm.Generator
	classifier Classifier
	memories   *memory.Manager
	composer   *prompt.Composer
	config     *Config
	pool       *extractPool

	closeOnce sync.Once
}

// Option configures the engine.
type Option func(*Engine)

// WithClassifier sets the emotion classifier. Without one, every turn
// runs with a neutral assessment.
func WithClassifier(c Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithComposer overrides the default prompt composer.
func WithComposer(c *prompt.Composer) Option {
	return func(e *Engine) { e.composer = c }
}

// WithConfig overrides the default engine config.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// NewEngine creates an engine and starts its extraction workers.
// generator is the creative-mode capability for persona replies;
// memories handles retrieval and post-turn extraction.
func NewEngine(generator llm.Generator, memories *memory.Manager, opts ...Option) *Engine {
	e := &Engine{
		generator: generator,
		memories:  memories,
		composer:  prompt.NewComposer(nil),
		config:    DefaultConfig,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.ExtractWorkers <= 0 {
		e.config.ExtractWorkers = DefaultConfig.ExtractWorkers
	}
	if e.config.ExtractQueueSize <= 0 {
		e.config.ExtractQueueSize = DefaultConfig.ExtractQueueSize
	}
	if e.config.GenerateTimeout <= 0 {
		e.config.GenerateTimeout = DefaultConfig.GenerateTimeout
	}
	if e.config.ExtractTimeout <= 0 {
		e.config.ExtractTimeout = DefaultConfig.ExtractTimeout
	}

	e.pool = newExtractPool(e.memories, e.config.ExtractWorkers, e.config.ExtractQueueSize, e.config.ExtractTimeout)
	return e
}

// Input is one conversational turn request.
type Input struct {
	// Persona speaks the reply. Required, and must validate.
	Persona *core.Persona

	// UserMessage is the user's utterance.
	UserMessage string

	// Empathetic selects the heightened-empathy sampling preset
	// instead of the standard one.
	Empathetic bool
}

// Output is the delivered turn result.
type Output struct {
	// Text is the persona's reply. Never empty: generation failure
	// yields a placeholder and sets Degraded.
	Text string

	// Emotion is the turn's assessment (neutral on classifier failure).
	Emotion emotion.Assessment

	// MemoriesUsed are the ranked records that made it into the prompt.
	MemoriesUsed []*memory.Record

	// Prompt is the composed system prompt, exposed for observability.
	Prompt string

	// Degraded is set when the reply is a locally generated fallback.
	Degraded bool
}

// fallbackReply is the degraded-mode reply used when the generation
// capability is unavailable.
const fallbackReply = "I'm having a little trouble finding the right words just now, but I'm here with you. Tell me more?"

// Respond runs one full turn. The only synchronous error is persona
// validation; every external failure degrades instead.
func (e *Engine) Respond(ctx context.Context, input *Input) (*Output, error) {
	if err := input.Persona.Validate(); err != nil {
		return nil, err
	}

	turnID := uuid.New().String()
	persona := input.Persona
	transition(turnID, StateIdle, StateEmotionPending)
	transition(turnID, StateIdle, StateMemoryQuery)

	// Emotion classification and memory retrieval are both read-only
	// with no ordering dependency, so they run concurrently.
	var (
		wg         sync.WaitGroup
		assessment = emotion.NeutralAssessment()
		records    []*memory.Record
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if e.classifier != nil {
			assessment = e.classifier.Classify(ctx, input.UserMessage)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		records, err = e.memories.Retrieve(ctx, persona.ID, input.UserMessage)
		if err != nil {
			log.Printf("[ENGINE] Memory retrieval failed, continuing without memories: %v", err)
			records = nil
		}
	}()
	wg.Wait()

	transition(turnID, StateMemoryQuery, StateComposing)
	turns := persona.RecentTurns()
	promptText := e.composer.Compose(persona, records, assessment, turns)

	transition(turnID, StateComposing, StateGenerating)
	sampling := core.StandardSampling
	if input.Empathetic {
		sampling = core.EmpatheticSampling
	}

	genCtx, cancel := context.WithTimeout(ctx, e.config.GenerateTimeout)
	reply, err := e.generator.Generate(genCtx, promptText, sampling)
	cancel()

	degraded := false
	if err != nil || reply == "" {
		log.Printf("[ENGINE] Degraded mode: generation unavailable (%v), using placeholder reply", err)
		reply = fallbackReply
		degraded = true
	}

	transition(turnID, StateGenerating, StateDelivered)
	persona.AppendExchange(input.UserMessage, reply)

	// Extraction runs after delivery and never blocks the caller.
	// Placeholder replies carry no persona content worth remembering.
	if !degraded {
		transition(turnID, StateDelivered, StateExtracting)
		e.pool.submit(extractJob{
			personaID:  persona.ID,
			userText:   input.UserMessage,
			replyText:  reply,
			assessment: assessment,
		})
	}
	transition(turnID, StateDelivered, StateIdle)

	return &Output{
		Text:         reply,
		Emotion:      assessment,
		MemoriesUsed: records,
		Prompt:       promptText,
		Degraded:     degraded,
	}, nil
}

// AddMemory stores a manually provided memory for a persona.
func (e *Engine) AddMemory(ctx context.Context, personaID, content string, typ memory.Type, importance float64) (*memory.Record, error) {
	return e.memories.Add(ctx, personaID, content, typ, importance)
}

// ExtractionFailures exposes background extraction errors for
// observability. Failures are also logged; the channel is buffered and
// never delivered to conversational callers.
func (e *Engine) ExtractionFailures() <-chan error {
	return e.pool.failures
}

// Close stops accepting extraction jobs, waits for in-flight jobs to
// finish or hit their timeout, and releases the pool.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.pool.close()
	})
}

func transition(turnID string, from, to State) {
	log.Printf("[ENGINE] turn %s: %s -> %s", turnID, from, to)
}
