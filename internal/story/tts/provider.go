package tts

import (
	"context"

	"wondertales/internal/domain/library/generator"
)

// ProviderEngine narrates with the story provider's own speech model,
// Gemini's "Puck" voice or OpenAI speech.
type ProviderEngine struct {
	gen generator.SpeechGenerator
}

func NewProviderEngine(gen generator.SpeechGenerator) *ProviderEngine {
	return &ProviderEngine{gen: gen}
}

func (p *ProviderEngine) Name() string {
	return EngineTypeProvider.String()
}

func (p *ProviderEngine) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	return p.gen.GenerateSpeech(ctx, text)
}
