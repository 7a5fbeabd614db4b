package core

// SamplingConfig controls text generation behavior. The engine never
// tunes these per-call beyond choosing a preset; keeping them explicit
// makes replies reproducible across providers.
type SamplingConfig struct {
	// Temperature in [0.0, 1.0]. Higher is more varied.
	Temperature float64

	// MaxTokens caps the generated reply length.
	MaxTokens int64

	// DiversityPenalty in [0.0, 1.0] discourages the model from
	// circling the same topic. Providers without a native penalty
	// approximate it (see the llm package).
	DiversityPenalty float64
}

// StandardSampling is the default conversational preset.
var StandardSampling = SamplingConfig{
	Temperature:      0.7,
	MaxTokens:        1024,
	DiversityPenalty: 0.3,
}

// EmpatheticSampling is the heightened-empathy preset, selected when
// the caller requests an explicitly emotion-aware reply.
var EmpatheticSampling = SamplingConfig{
	Temperature:      0.9,
	MaxTokens:        1024,
	DiversityPenalty: 0.6,
}

// StructuredSampling is the fast/cheap preset for machine-parseable
// output (emotion classification, memory extraction).
var StructuredSampling = SamplingConfig{
	Temperature:      0.0,
	MaxTokens:        512,
	DiversityPenalty: 0.0,
}
