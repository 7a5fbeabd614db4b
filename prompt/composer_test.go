package prompt_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/memory"
	"github.com/everkin/kin-go-sdk/prompt"
)

func testPersona() *core.Persona {
	return &core.Persona{
		ID:           "p1",
		Name:         "Rose",
		Relationship: "grandmother",
		Personality:  "warm, endlessly curious, loves gardening",
		Phrases:      []string{"oh, sweetheart", "back in my day"},
	}
}

func mkMemory(content string, typ memory.Type, importance float64) *memory.Record {
	return memory.RestoreRecord(
		content, "p1", content, typ, importance,
		[]float32{1}, nil, time.Now(),
	)
}

func TestComposer_NeverExceedsBudget(t *testing.T) {
	composer := prompt.NewComposer(&prompt.Config{
		Budget:                  3000,
		MaxMemories:             10,
		IdentityBudget:          600,
		MemoryBudget:            2200,
		GuidanceBudget:          400,
		HistoryBudget:           2400,
		EmotionConfidenceCutoff: 0.5,
	})
	persona := testPersona()
	for i := 0; i < 30; i++ {
		persona.AppendExchange(
			strings.Repeat("tell me about the garden ", 8),
			strings.Repeat("the roses are doing wonderfully this year ", 8),
		)
	}
	assessment := emotion.Assessment{Label: emotion.Nostalgic, Confidence: 0.9}

	for count := 0; count <= 100; count += 10 {
		var records []*memory.Record
		for i := 0; i < count; i++ {
			records = append(records, mkMemory(
				fmt.Sprintf("memory %d: %s", i, strings.Repeat("gardening detail ", 10)),
				memory.TypeExperience, 0.5,
			))
		}

		out := composer.Compose(persona, records, assessment, persona.RecentTurns())
		if len(out) > 3000 {
			t.Errorf("%d memories: prompt length %d exceeds budget 3000", count, len(out))
		}
		if !strings.Contains(out, "You are Rose") {
			t.Errorf("%d memories: identity section missing", count)
		}
		if !strings.Contains(out, "first person as Rose") {
			t.Errorf("%d memories: directives section missing", count)
		}
	}
}

func TestComposer_GuidanceGatedOnConfidence(t *testing.T) {
	composer := prompt.NewComposer(nil)
	persona := testPersona()

	low := emotion.Assessment{Label: emotion.Sad, Confidence: 0.4}
	out := composer.Compose(persona, nil, low, nil)
	if strings.Contains(out, "EMOTIONAL CONTEXT") {
		t.Error("guidance section present below confidence cutoff")
	}

	high := emotion.Assessment{Label: emotion.Sad, Confidence: 0.8}
	out = composer.Compose(persona, nil, high, nil)
	if !strings.Contains(out, "EMOTIONAL CONTEXT") {
		t.Error("guidance section missing above confidence cutoff")
	}
	if !strings.Contains(out, "feeling sad") {
		t.Error("guidance does not name the detected emotion")
	}
}

func TestComposer_NeutralHasNoGuidance(t *testing.T) {
	composer := prompt.NewComposer(nil)
	out := composer.Compose(testPersona(), nil, emotion.Assessment{Label: emotion.Neutral, Confidence: 0.9}, nil)
	if strings.Contains(out, "EMOTIONAL CONTEXT") {
		t.Error("neutral emotion should emit no guidance section")
	}
}

func TestComposer_NoMemoriesMeansNoMemorySection(t *testing.T) {
	composer := prompt.NewComposer(nil)
	out := composer.Compose(testPersona(), nil, emotion.NeutralAssessment(), nil)
	if strings.Contains(out, "WHAT YOU REMEMBER") {
		t.Error("memory section present with zero memories")
	}
}

func TestComposer_GroupsMemoriesByTypeAndImportance(t *testing.T) {
	composer := prompt.NewComposer(nil)
	records := []*memory.Record{
		mkMemory("likes jasmine tea", memory.TypePreference, 0.4),
		mkMemory("works as a nurse", memory.TypeFact, 0.9),
		mkMemory("prefers calls over texts", memory.TypePreference, 0.8),
		mkMemory("we watched the eclipse together", memory.TypeExperience, 0.7),
	}

	out := composer.Compose(testPersona(), records, emotion.NeutralAssessment(), nil)

	if !strings.Contains(out, "Things you know about them:") {
		t.Fatal("fact group heading missing")
	}
	// Within the preference group, higher importance renders first.
	calls := strings.Index(out, "prefers calls over texts")
	tea := strings.Index(out, "likes jasmine tea")
	if calls < 0 || tea < 0 || calls > tea {
		t.Errorf("preference ordering wrong: calls@%d tea@%d", calls, tea)
	}
	// Fact group renders before experience group.
	fact := strings.Index(out, "works as a nurse")
	exp := strings.Index(out, "we watched the eclipse together")
	if fact < 0 || exp < 0 || fact > exp {
		t.Errorf("type group ordering wrong: fact@%d experience@%d", fact, exp)
	}
}

func TestComposer_CapsRenderedMemoriesAtTen(t *testing.T) {
	composer := prompt.NewComposer(nil)
	var records []*memory.Record
	for i := 0; i < 15; i++ {
		records = append(records, mkMemory(fmt.Sprintf("distinct-fact-%02d", i), memory.TypeFact, 0.5))
	}

	out := composer.Compose(testPersona(), records, emotion.NeutralAssessment(), nil)
	rendered := strings.Count(out, "distinct-fact-")
	if rendered != 10 {
		t.Errorf("expected 10 rendered memories, got %d", rendered)
	}
	// Ranked order is positional: the first ten survive.
	if strings.Contains(out, "distinct-fact-14") {
		t.Error("memory beyond the top-10 cut made it into the prompt")
	}
}

func TestComposer_HistoryOldestFirstAndTruncatedFromFront(t *testing.T) {
	composer := prompt.NewComposer(&prompt.Config{
		Budget:                  1500,
		IdentityBudget:          600,
		MemoryBudget:            2200,
		GuidanceBudget:          400,
		HistoryBudget:           300,
		EmotionConfidenceCutoff: 0.5,
	})
	persona := testPersona()
	for i := 0; i < 5; i++ {
		persona.AppendExchange(fmt.Sprintf("question number %d with some padding text", i),
			fmt.Sprintf("answer number %d with some padding text", i))
	}

	out := composer.Compose(persona, nil, emotion.NeutralAssessment(), persona.RecentTurns())
	if !strings.Contains(out, "answer number 4") {
		t.Error("newest turn lost to history truncation")
	}
	if strings.Contains(out, "question number 0") && !strings.Contains(out, "answer number 4") {
		t.Error("history kept oldest turns at the expense of newest")
	}
}
