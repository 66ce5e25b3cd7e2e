package generator

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

// StoryWriter produces story pages. pageCount is the number of pages the
// story will hold once the new page is added minus one, so a value at or
// above the ending threshold asks for a closing page with no choices.
type StoryWriter interface {
	StartStory(ctx context.Context, topic string) (*story.Page, error)
	ContinueStory(ctx context.Context, previousText, choice string, pageCount int) (*story.Page, error)
}

// Illustrator turns an image prompt into a picture.
type Illustrator interface {
	Illustrate(ctx context.Context, prompt string) (*story.Illustration, error)
}

// Speech is encoded audio returned by a speech collaborator.
type Speech struct {
	Data     []byte
	MIMEType string
}

type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text string) (*Speech, error)
}

// ChatCompanion answers the last user message in history.
type ChatCompanion interface {
	Chat(ctx context.Context, persona string, history []story.ChatMessage) (string, error)
}

type RiddleMaster interface {
	NewRiddle(ctx context.Context) (*story.Riddle, error)
	CheckAnswer(ctx context.Context, answer, guess string) (*story.Verdict, error)
}

// Transcriber is an optional capability: providers that cannot turn speech
// into text simply do not implement it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Provider bundles every collaborator one backend offers.
type Provider interface {
	StoryWriter
	Illustrator
	SpeechGenerator
	ChatCompanion
	RiddleMaster
	Name() string
}

// New builds the provider named by cfg.Provider.
func New(cfg *config.Config) (Provider, error) {
	opts := Options{
		Style:       cfg.Story.Style,
		EndingAfter: cfg.Story.EndingAfter,
		Timeout:     cfg.HTTP.Timeout,
	}

	switch cfg.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but no API key configured")
		}
		return NewGeminiClient(cfg.Gemini, opts), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but no API key configured")
		}
		return NewOpenAIClient(cfg.OpenAI, opts), nil
	case "mock":
		return NewMock(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewIllustration wraps image bytes with a content-derived ref so the same
// picture always maps to the same favorite.
func NewIllustration(data []byte, mimeType string) *story.Illustration {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &story.Illustration{
		Ref:      fmt.Sprintf("%x", md5.Sum(data)),
		MIMEType: mimeType,
		Data:     data,
	}
}

func isFinalPage(pageCount, endingAfter int) bool {
	return pageCount >= endingAfter
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
