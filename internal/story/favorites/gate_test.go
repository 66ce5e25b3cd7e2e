package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/library"
	"wondertales/internal/domain/story"
)

func newStore(t *testing.T) *library.FileStore {
	fs, err := library.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestGateAddOnly(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := NewGate(store, false, nil)
	img := &story.Illustration{Ref: "moon", MIMEType: "image/png", Data: []byte{1}}

	fav, err := g.Check(ctx, img)
	require.NoError(t, err)
	require.False(t, fav)

	on, err := g.Toggle(ctx, img, "a moon")
	require.NoError(t, err)
	require.True(t, on)
	require.True(t, g.IsFavorite("moon"))

	// second toggle in the reading view cannot remove
	on, err = g.Toggle(ctx, img, "a moon")
	require.NoError(t, err)
	require.True(t, on)

	favs, err := store.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	require.Equal(t, "a moon", favs[0].Prompt)
}

func TestGateAddOrRemove(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := NewGate(store, true, nil)
	img := &story.Illustration{Ref: "sun"}

	on, err := g.Toggle(ctx, img, "a sun")
	require.NoError(t, err)
	require.True(t, on)

	on, err = g.Toggle(ctx, img, "a sun")
	require.NoError(t, err)
	require.False(t, on)
	require.False(t, g.IsFavorite("sun"))

	favs, err := store.Favorites(ctx)
	require.NoError(t, err)
	require.Empty(t, favs)
}

func TestGateCheckReflectsNewImage(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SaveFavorite(ctx, story.Favorite{ID: "1", ImageRef: "a"}))
	g := NewGate(store, false, nil)

	fav, err := g.Check(ctx, &story.Illustration{Ref: "a"})
	require.NoError(t, err)
	require.True(t, fav)
	require.True(t, g.IsFavorite("a"))

	fav, err = g.Check(ctx, &story.Illustration{Ref: "b"})
	require.NoError(t, err)
	require.False(t, fav)
	require.False(t, g.IsFavorite("a"))

	fav, err = g.Check(ctx, nil)
	require.NoError(t, err)
	require.False(t, fav)
}

type brokenStore struct{}

func (brokenStore) Favorites(context.Context) ([]story.Favorite, error) {
	return nil, errors.New("disk gone")
}
func (brokenStore) SaveFavorite(context.Context, story.Favorite) error { return nil }
func (brokenStore) RemoveFavorite(context.Context, string) error       { return nil }

func TestGateStoreFailure(t *testing.T) {
	g := NewGate(brokenStore{}, false, nil)
	_, err := g.Check(context.Background(), &story.Illustration{Ref: "a"})
	require.ErrorContains(t, err, "disk gone")

	_, err = g.Toggle(context.Background(), nil, "")
	require.Error(t, err)
}
