package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
)

const (
	Greeting = "Hi! I'm Sparkle the Story Bot. What do you want to talk about?"

	fallbackReply = "Oh no! I lost my train of thought. Can you say that again?"
	emptyReply    = "I didn't quite catch that, friend!"
)

var ErrEmptyMessage = errors.New("chat: message is empty")

// Buddy is the chat companion. Provider failures never reach the child:
// they are logged and answered with a friendly line instead.
type Buddy struct {
	companion generator.ChatCompanion
	persona   string
	log       *logrus.Entry

	mu         sync.Mutex
	transcript []story.ChatMessage
}

func NewBuddy(companion generator.ChatCompanion, log *logrus.Entry) *Buddy {
	if log == nil {
		log = logrus.WithField("component", "chat")
	}
	return &Buddy{
		companion:  companion,
		persona:    generator.Persona,
		log:        log,
		transcript: []story.ChatMessage{{Role: story.RoleModel, Text: Greeting}},
	}
}

// Send adds msg to the transcript and returns the companion's reply.
func (b *Buddy) Send(ctx context.Context, msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", ErrEmptyMessage
	}

	b.mu.Lock()
	b.transcript = append(b.transcript, story.ChatMessage{Role: story.RoleUser, Text: msg})
	history := b.copyLocked()
	b.mu.Unlock()

	reply, err := b.companion.Chat(ctx, b.persona, history)
	switch {
	case err != nil:
		b.log.WithError(err).Warn("Chat companion failed")
		reply = fallbackReply
	case strings.TrimSpace(reply) == "":
		reply = emptyReply
	default:
		reply = strings.TrimSpace(reply)
	}

	b.mu.Lock()
	b.transcript = append(b.transcript, story.ChatMessage{Role: story.RoleModel, Text: reply})
	b.mu.Unlock()
	return reply, nil
}

// Transcript returns every message so far, greeting first.
func (b *Buddy) Transcript() []story.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

func (b *Buddy) copyLocked() []story.ChatMessage {
	out := make([]story.ChatMessage, len(b.transcript))
	copy(out, b.transcript)
	return out
}
