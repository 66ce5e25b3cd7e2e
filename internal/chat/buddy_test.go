package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/story"
)

type fakeCompanion struct {
	reply   string
	err     error
	persona string
	history []story.ChatMessage
}

func (f *fakeCompanion) Chat(ctx context.Context, persona string, history []story.ChatMessage) (string, error) {
	f.persona = persona
	f.history = history
	return f.reply, f.err
}

func TestBuddyStartsWithGreeting(t *testing.T) {
	b := NewBuddy(&fakeCompanion{}, nil)
	require.Equal(t, []story.ChatMessage{{Role: story.RoleModel, Text: Greeting}}, b.Transcript())
}

func TestBuddySend(t *testing.T) {
	c := &fakeCompanion{reply: "  Dragons love marshmallows!  "}
	b := NewBuddy(c, nil)

	reply, err := b.Send(context.Background(), " do dragons eat candy? ")
	require.NoError(t, err)
	assert.Equal(t, "Dragons love marshmallows!", reply)
	assert.Contains(t, c.persona, "Sparkle")

	require.Len(t, c.history, 2)
	assert.Equal(t, story.ChatMessage{Role: story.RoleUser, Text: "do dragons eat candy?"}, c.history[1])

	tr := b.Transcript()
	require.Len(t, tr, 3)
	assert.Equal(t, story.RoleModel, tr[2].Role)
	assert.Equal(t, "Dragons love marshmallows!", tr[2].Text)

	// transcript is a copy
	tr[0].Text = "changed"
	assert.Equal(t, Greeting, b.Transcript()[0].Text)
}

func TestBuddyIgnoresBlankMessages(t *testing.T) {
	c := &fakeCompanion{reply: "hi"}
	b := NewBuddy(c, nil)

	_, err := b.Send(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Nil(t, c.history)
	assert.Len(t, b.Transcript(), 1)
}

func TestBuddyFallbacks(t *testing.T) {
	c := &fakeCompanion{err: errors.New("quota exceeded")}
	b := NewBuddy(c, nil)

	reply, err := b.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)

	c.err = nil
	c.reply = "   "
	reply, err = b.Send(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, emptyReply, reply)
	assert.Len(t, b.Transcript(), 5)
}
