// internal/story/tts/tts.go
package tts

import (
	"context"

	"wondertales/internal/domain/library/generator"
)

type Config struct {
	Type      string
	Speed     float64
	Volume    float64
	Voice     string
	CachePath string
}

// Engine turns text into encoded narration audio. Engines never play the
// audio themselves; the playback controller owns the speaker.
type Engine interface {
	Synthesize(ctx context.Context, text string) (*generator.Speech, error)
	Name() string
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	GetCacheStats() (map[string]interface{}, error)
	ClearCache() error
}

// VoiceLister is implemented by engines that can enumerate their voices.
type VoiceLister interface {
	GetAvailableVoices(ctx context.Context) ([]string, error)
}
