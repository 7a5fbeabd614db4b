package emotion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/everkin/kin-go-sdk/core"
	"github.com/everkin/kin-go-sdk/llm"
)

// Config holds classifier settings.
type Config struct {
	// Timeout bounds the classification call. Default: 5s.
	Timeout time.Duration

	// Sampling for the structured call. Default: core.StructuredSampling.
	Sampling core.SamplingConfig
}

// DefaultConfig returns classifier defaults.
var DefaultConfig = &Config{
	Timeout:  5 * time.Second,
	Sampling: core.StructuredSampling,
}

// Classifier infers an emotion label for a user utterance using a
// fast, low-temperature generation call with machine-parseable output.
type Classifier struct {
	generator llm.Generator
	config    *Config
}

// NewClassifier creates a Classifier. Pass the fast/cheap generator,
// not the creative one.
func NewClassifier(generator llm.Generator, config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig
	}
	return &Classifier{generator: generator, config: config}
}

const classifyPrompt = `Classify the dominant emotion in the message below.

Respond with a single JSON object and nothing else:
{"emotion": "<label>", "confidence": <0.0-1.0>, "hints": ["<short support suggestion>", ...]}

The emotion label must be exactly one of:
happy, sad, anxious, angry, nostalgic, loving, grateful, confused, excited, lonely, neutral

Message:
%s`

// Classify returns an assessment for the user's text. It never fails:
// classifier unavailability, timeouts, and unparseable or unrecognized
// output all degrade to a neutral assessment with confidence 0.
func (c *Classifier) Classify(ctx context.Context, userText string) Assessment {
	if strings.TrimSpace(userText) == "" {
		return NeutralAssessment()
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.generator.Generate(ctx, fmt.Sprintf(classifyPrompt, userText), c.config.Sampling)
	if err != nil {
		log.Printf("[EMOTION] Classification unavailable, using neutral: %v", err)
		return NeutralAssessment()
	}

	assessment, err := parseAssessment(out)
	if err != nil {
		log.Printf("[EMOTION] Classification anomaly, coerced to neutral: %v", err)
		return NeutralAssessment()
	}
	return assessment
}

// parseAssessment extracts an Assessment from model output. Output may
// carry code fences or prose around the JSON object; only the first
// object is considered.
func parseAssessment(out string) (Assessment, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("no JSON object in output %q", truncateLog(out, 80))
	}

	body := gjson.Parse(out[start : end+1])
	label := Label(strings.ToLower(strings.TrimSpace(body.Get("emotion").String())))
	if !label.Valid() {
		return Assessment{}, fmt.Errorf("unrecognized emotion label %q", label)
	}

	confidence := body.Get("confidence").Float()
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var hints []string
	for _, h := range body.Get("hints").Array() {
		if s := strings.TrimSpace(h.String()); s != "" {
			hints = append(hints, s)
		}
	}

	return Assessment{Label: label, Confidence: confidence, Hints: hints}, nil
}

func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
