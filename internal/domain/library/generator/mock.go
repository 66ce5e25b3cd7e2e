package generator

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"go.uber.org/atomic"

	"wondertales/internal/domain/story"
)

// Mock is an offline provider that writes a tiny predictable story. It is
// used when no API key is configured and in tests.
type Mock struct {
	opts   Options
	rounds *atomic.Int32
}

func NewMock(opts Options) *Mock {
	return &Mock{opts: opts.withDefaults(), rounds: atomic.NewInt32(0)}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) StartStory(ctx context.Context, topic string) (*story.Page, error) {
	if blank(topic) {
		return nil, story.GenerationError("start story", fmt.Errorf("topic is empty"))
	}
	topic = strings.TrimSpace(topic)
	return &story.Page{
		Text:        fmt.Sprintf("Once upon a time there was %s. One sunny morning, something magical began.", topic),
		ImagePrompt: fmt.Sprintf("%s on a sunny morning", topic),
		Choices:     []string{"Go exploring", "Call a friend"},
	}, nil
}

func (m *Mock) ContinueStory(ctx context.Context, previousText, choice string, pageCount int) (*story.Page, error) {
	if isFinalPage(pageCount, m.opts.EndingAfter) {
		return &story.Page{
			Text:        fmt.Sprintf("They chose to %s, and everyone lived happily ever after. The end!", strings.ToLower(choice)),
			ImagePrompt: "a happy ending under a starry sky",
			IsEnding:    true,
		}, nil
	}
	return &story.Page{
		Text:        fmt.Sprintf("They chose to %s. Around the corner was a new surprise.", strings.ToLower(choice)),
		ImagePrompt: fmt.Sprintf("a surprise after choosing to %s", strings.ToLower(choice)),
		Choices:     []string{"Look closer", "Run home"},
	}, nil
}

// Illustrate paints a flat square whose colour depends on the prompt.
func (m *Mock) Illustrate(ctx context.Context, prompt string) (*story.Illustration, error) {
	sum := md5.Sum([]byte(prompt))
	fill := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, story.MediaUnavailable("illustrate", err)
	}
	return NewIllustration(buf.Bytes(), "image/png"), nil
}

// GenerateSpeech returns silence roughly as long as reading the text aloud.
func (m *Mock) GenerateSpeech(ctx context.Context, text string) (*Speech, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	// 24kHz 16-bit mono, a third of a second per word
	samples := words * 8000
	return &Speech{Data: make([]byte, samples*2), MIMEType: "audio/L16;codec=pcm;rate=24000"}, nil
}

func (m *Mock) Chat(ctx context.Context, persona string, history []story.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "Hello there, friend!", nil
	}
	last := history[len(history)-1].Text
	return fmt.Sprintf("Ooh, %q sounds wonderful! Tell me more!", last), nil
}

var mockRiddles = []story.Riddle{
	{Answer: "cat", Clue: "I have whiskers and soft paws, and I purr when I'm happy. What am I?", ImagePrompt: "a fluffy orange cat"},
	{Answer: "banana", Clue: "I'm long and yellow and monkeys love me. What am I?", ImagePrompt: "a smiling banana"},
	{Answer: "rainbow", Clue: "I appear after the rain with seven colours. What am I?", ImagePrompt: "a bright rainbow over hills"},
}

func (m *Mock) NewRiddle(ctx context.Context) (*story.Riddle, error) {
	n := m.rounds.Inc() - 1
	r := mockRiddles[int(n)%len(mockRiddles)]
	return &r, nil
}

func (m *Mock) CheckAnswer(ctx context.Context, answer, guess string) (*story.Verdict, error) {
	if strings.Contains(strings.ToLower(guess), strings.ToLower(answer)) {
		return &story.Verdict{Correct: true, Feedback: "Yes! You got it, clever you!"}, nil
	}
	return &story.Verdict{Feedback: "Not quite! Listen to the clue again and have another go."}, nil
}
