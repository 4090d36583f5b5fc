package domain

// GenerationConfig carries the decoding parameters sent to the
// sequence-to-sequence model with every prompt.
type GenerationConfig struct {
	MaxInputTokens int
	MinLength      int
	MaxLength      int
	LengthPenalty  float64
	NumBeams       int
	EarlyStopping  bool
}

// DefaultGenerationConfig is beam search with four beams, summaries of 30 to
// 150 tokens and inputs hard-truncated at 512 tokens.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxInputTokens: 512,
		MinLength:      30,
		MaxLength:      150,
		LengthPenalty:  2.0,
		NumBeams:       4,
		EarlyStopping:  true,
	}
}
