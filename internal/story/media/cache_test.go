package media

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
)

func clip(t *testing.T) *audio.Clip {
	c, err := audio.Decode(make([]byte, 480), "audio/pcm")
	require.NoError(t, err)
	return c
}

func TestCacheFieldsAreIndependent(t *testing.T) {
	c := NewCache()

	img := &story.Illustration{Ref: "a", Data: []byte{1}}
	require.True(t, c.PutImage(0, img))

	got, ok := c.Image(0)
	require.True(t, ok)
	require.Same(t, img, got)

	_, ok = c.Narration(0)
	require.False(t, ok)

	n := clip(t)
	require.True(t, c.PutNarration(0, n))
	gotClip, ok := c.Narration(0)
	require.True(t, ok)
	require.Same(t, n, gotClip)
	require.Equal(t, 2, c.Len())
}

func TestCacheKeepsFirstValue(t *testing.T) {
	c := NewCache()
	first := &story.Illustration{Ref: "first"}

	require.True(t, c.PutImage(3, first))
	require.False(t, c.PutImage(3, &story.Illustration{Ref: "second"}))

	got, _ := c.Image(3)
	require.Equal(t, "first", got.Ref)
}

func TestCacheIgnoresNil(t *testing.T) {
	c := NewCache()

	require.False(t, c.PutImage(1, nil))
	require.False(t, c.PutNarration(1, nil))
	_, ok := c.Image(1)
	require.False(t, ok)
	require.Zero(t, c.Len())
}
