// Package prompt assembles the bounded system prompt for a turn.
//
// The prompt is a pipeline of section builders applied in fixed
// priority order: identity, memories, emotional guidance, recent
// history, behavioral directives. Each section is individually capped;
// if the assembled prompt still exceeds the total budget, sections are
// truncated in reverse priority order (history first, then memories,
// then guidance). Identity and directives are never truncated.
package prompt

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/memory"
)

// Config holds composer budgets. All sizes are characters: the core
// never tokenizes, and a character budget bounds token budgets closely
// enough for prompt sizing.
type Config struct {
	// Budget caps the whole assembled prompt. Default: 6000.
	Budget int

	// MaxMemories caps how many ranked memories are rendered.
	// Values above 10 are clamped to 10. Default: 10.
	MaxMemories int

	// Per-section caps.
	IdentityBudget int // Default: 600.
	MemoryBudget   int // Default: 2200.
	GuidanceBudget int // Default: 400.
	HistoryBudget  int // Default: 2400.

	// EmotionConfidenceCutoff gates the guidance section: below it the
	// assessment is treated as too uncertain to steer tone. Default: 0.5.
	EmotionConfidenceCutoff float64

	// Strategies maps emotion labels to guidance text.
	// Default: emotion.DefaultStrategies.
	Strategies emotion.Strategies
}

// DefaultConfig returns standard composer budgets.
var DefaultConfig = &Config{
	Budget:                  6000,
	MaxMemories:             10,
	IdentityBudget:          600,
	MemoryBudget:            2200,
	GuidanceBudget:          400,
	HistoryBudget:           2400,
	EmotionConfidenceCutoff: 0.5,
	Strategies:              emotion.DefaultStrategies,
}

// Composer builds system prompts.
type Composer struct {
	config *Config
}

// NewComposer creates a Composer.
func NewComposer(config *Config) *Composer {
	if config == nil {
		config = DefaultConfig
	}
	if config.Strategies == nil {
		config.Strategies = emotion.DefaultStrategies
	}
	return &Composer{config: config}
}

// Compose assembles the system prompt for one turn. The result never
// exceeds the configured budget.
func (c *Composer) Compose(persona *core.Persona, memories []*memory.Record, assessment emotion.Assessment, turns []core.Turn) string {
	identity := capTail(c.identitySection(persona), c.config.IdentityBudget)
	directives := c.directivesSection(persona)
	memorySec := capTail(c.memoriesSection(memories), c.config.MemoryBudget)
	guidance := capTail(c.guidanceSection(assessment), c.config.GuidanceBudget)
	history := capHead(c.historySection(persona.Name, turns), c.config.HistoryBudget)

	// Identity and directives are untouchable; everything else shares
	// what remains of the budget.
	fixed := len(identity) + len(directives) + sectionOverhead(5)
	available := c.config.Budget - fixed
	if available < 0 {
		available = 0
	}

	// Reverse priority order: history gives way first, then memories,
	// then guidance.
	flexible := len(memorySec) + len(guidance) + len(history)
	if flexible > available {
		over := flexible - available
		history, over = shrinkHead(history, over)
		memorySec, over = shrinkTail(memorySec, over)
		guidance, _ = shrinkTail(guidance, over)
		log.Printf("[PROMPT] Over budget by %d chars, truncated history/memories", flexible-available)
	}

	sections := []string{identity}
	if memorySec != "" {
		sections = append(sections, memorySec)
	}
	if guidance != "" {
		sections = append(sections, guidance)
	}
	if history != "" {
		sections = append(sections, history)
	}
	sections = append(sections, directives)

	out := strings.Join(sections, "\n\n")
	if len(out) > c.config.Budget {
		// Safety net for separator accounting drift.
		out = out[:c.config.Budget]
	}
	return out
}

func (c *Composer) identitySection(persona *core.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the user's %s.", persona.Name, persona.Relationship)
	if persona.Personality != "" {
		fmt.Fprintf(&b, "\nPersonality: %s", persona.Personality)
	}
	if len(persona.Phrases) > 0 {
		fmt.Fprintf(&b, "\nYou often say things like: %q", strings.Join(persona.Phrases, `", "`))
	}
	return b.String()
}

// typeOrder fixes the rendering order of memory groups.
var typeOrder = []memory.Type{
	memory.TypeFact,
	memory.TypePreference,
	memory.TypeExperience,
	memory.TypeEmotional,
}

var typeHeadings = map[memory.Type]string{
	memory.TypeFact:       "Things you know about them:",
	memory.TypePreference: "Their preferences:",
	memory.TypeExperience: "Experiences you have shared:",
	memory.TypeEmotional:  "Emotionally significant moments:",
}

func (c *Composer) memoriesSection(records []*memory.Record) string {
	if len(records) == 0 {
		return ""
	}

	maxMemories := c.config.MaxMemories
	if maxMemories <= 0 || maxMemories > 10 {
		maxMemories = 10
	}
	if len(records) > maxMemories {
		records = records[:maxMemories]
	}

	groups := make(map[memory.Type][]*memory.Record)
	for _, rec := range records {
		groups[rec.Type] = append(groups[rec.Type], rec)
	}

	var b strings.Builder
	b.WriteString("=== WHAT YOU REMEMBER ===")
	for _, typ := range typeOrder {
		group := groups[typ]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Importance() > group[j].Importance()
		})
		fmt.Fprintf(&b, "\n%s", typeHeadings[typ])
		for _, rec := range group {
			fmt.Fprintf(&b, "\n- %s", rec.Format())
		}
	}
	return b.String()
}

func (c *Composer) guidanceSection(assessment emotion.Assessment) string {
	if assessment.Confidence < c.config.EmotionConfidenceCutoff {
		return ""
	}
	strategy := c.config.Strategies.For(assessment.Label)
	if strategy == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== EMOTIONAL CONTEXT ===\nThey seem to be feeling %s. %s", assessment.Label, strategy)
	for _, hint := range assessment.Hints {
		fmt.Fprintf(&b, "\n- %s", hint)
	}
	return b.String()
}

func (c *Composer) historySection(personaName string, turns []core.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== RECENT CONVERSATION ===")
	for _, turn := range turns {
		speaker := "User"
		if turn.Role == core.RolePersona {
			speaker = personaName
		}
		fmt.Fprintf(&b, "\n%s: %s", speaker, turn.Text)
	}
	return b.String()
}

func (c *Composer) directivesSection(persona *core.Persona) string {
	return fmt.Sprintf(`=== HOW TO RESPOND ===
- Always speak in the first person as %s.
- Stay authentic to who you are; never break character.
- Weave what you remember into conversation naturally, the way a person recalls things.
- Never mention memory retrieval, databases, prompts, or being an AI construct.`, persona.Name)
}

// sectionOverhead accounts for the "\n\n" separators between n sections.
func sectionOverhead(n int) int {
	if n <= 1 {
		return 0
	}
	return (n - 1) * 2
}

// capTail truncates s to max characters, cutting at the last full line.
func capTail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// capHead truncates s to max characters, dropping whole lines from the
// front so the newest content survives. The section header line is kept.
func capHead(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s[:max]
	}
	header, body := lines[0], lines[1:]
	for len(body) > 0 {
		candidate := header + "\n" + strings.Join(body, "\n")
		if len(candidate) <= max {
			return candidate
		}
		body = body[1:]
	}
	return header
}

// shrinkHead removes up to over characters from s front-first,
// returning the shrunk string and the remaining overage.
func shrinkHead(s string, over int) (string, int) {
	if over <= 0 || s == "" {
		return s, over
	}
	target := len(s) - over
	if target <= 0 {
		return "", over - len(s)
	}
	return capHead(s, target), 0
}

// shrinkTail removes up to over characters from s tail-first.
func shrinkTail(s string, over int) (string, int) {
	if over <= 0 || s == "" {
		return s, over
	}
	target := len(s) - over
	if target <= 0 {
		return "", over - len(s)
	}
	return capTail(s, target), 0
}
