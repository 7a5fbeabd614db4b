// Package llm adapts external text-generation capabilities to the
// single interface the rest of the SDK consumes.
//
// The engine treats generation as a black box: given a prompt and a
// sampling configuration, return text. Two modes matter in practice:
// a creative mode for persona replies and a fast/structured mode for
// classification and extraction. Both are expressed through
// core.SamplingConfig presets rather than separate interfaces.
package llm

import (
	"context"

	"github.com/everkin/kin-go-sdk/core"
)

// Generator is the text-generation capability.
// Implementations: AnthropicGenerator (production), test doubles.
type Generator interface {
	// Generate produces text for the prompt under the given sampling
	// configuration. Implementations must respect ctx cancellation.
	Generate(ctx context.Context, prompt string, cfg core.SamplingConfig) (string, error)
}
