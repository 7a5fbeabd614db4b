// Package emotion infers how the user is feeling and maps feelings to
// response strategies.
//
// Classification is an enhancement, never a hard dependency: every
// failure path degrades to a neutral assessment with zero confidence
// so response generation can proceed without emotional guidance.
package emotion

// Label is an emotion from the closed set the engine understands.
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Anxious   Label = "anxious"
	Angry     Label = "angry"
	Nostalgic Label = "nostalgic"
	Loving    Label = "loving"
	Grateful  Label = "grateful"
	Confused  Label = "confused"
	Excited   Label = "excited"
	Lonely    Label = "lonely"
	Neutral   Label = "neutral"
)

// labels is the closed set. Unrecognized classifier output is coerced
// to Neutral rather than admitted.
var labels = map[Label]bool{
	Happy:     true,
	Sad:       true,
	Anxious:   true,
	Angry:     true,
	Nostalgic: true,
	Loving:    true,
	Grateful:  true,
	Confused:  true,
	Excited:   true,
	Lonely:    true,
	Neutral:   true,
}

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	return labels[l]
}

// Assessment is the per-turn classification result. It is ephemeral:
// never persisted except as metadata on extracted memories.
type Assessment struct {
	Label      Label
	Confidence float64

	// Hints are optional support-strategy suggestions from the
	// classifier itself, distinct from the configured strategy table.
	Hints []string
}

// NeutralAssessment is the degraded-mode default.
func NeutralAssessment() Assessment {
	return Assessment{Label: Neutral, Confidence: 0.0}
}

// Strategies maps emotion labels to response guidance. It is a
// configuration table so new emotions can be added without code
// changes; the composer looks guidance up here.
type Strategies map[Label]string

// DefaultStrategies is the built-in guidance table.
var DefaultStrategies = Strategies{
	Sad:       "Validate the feeling and offer grounded comfort. Do not minimize what they are going through.",
	Anxious:   "Keep a calm tone. Offer reassurance and perspective without dismissing the worry.",
	Happy:     "Share their enthusiasm and reinforce the progress they are describing.",
	Lonely:    "Affirm your presence and connection. Recall a shared memory if one fits naturally.",
	Angry:     "De-escalate. Acknowledge that the anger is valid and avoid sounding defensive.",
	Confused:  "Clarify gently and offer structure, one step at a time.",
	Nostalgic: "Lean into shared history with warmth.",
	Grateful:  "Reciprocate the warmth genuinely.",
	Excited:   "Match their energy proportionally.",
	Loving:    "Reciprocate and reference the relationship you share.",
}

// For returns the guidance for a label, or "" when the label has no
// entry (neutral and unclassified get the standard conversational tone).
func (s Strategies) For(label Label) string {
	return s[label]
}
