package tts

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/story/audio"
)

const mockSampleRate = 16000

// MockTTSEngine - produces silence as long as reading the text would take
type MockTTSEngine struct {
	speed float64
}

func NewMockTTSEngine(c Config) *MockTTSEngine {
	speed := c.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return &MockTTSEngine{speed: speed}
}

func (m *MockTTSEngine) Name() string {
	return EngineTypeMock.String()
}

func (m *MockTTSEngine) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	// Simulate reading time based on text length, 150 words per minute
	words := len(strings.Fields(text))
	duration := time.Duration(float64(words) / 150.0 / m.speed * float64(time.Minute))

	logrus.WithFields(logrus.Fields{
		"words":    words,
		"duration": duration.String(),
	}).Debug("Simulating narration")

	samples := int(duration.Seconds() * mockSampleRate)
	pcm := make([]byte, samples*2)
	return &generator.Speech{
		Data:     audio.EncodeWAV(pcm, mockSampleRate, 1),
		MIMEType: "audio/wav",
	}, nil
}

func (m *MockTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}
