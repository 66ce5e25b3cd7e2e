package favorites

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/story"
)

// Store is the slice of the library the gate reads and writes.
type Store interface {
	Favorites(ctx context.Context) ([]story.Favorite, error)
	SaveFavorite(ctx context.Context, f story.Favorite) error
	RemoveFavorite(ctx context.Context, id string) error
}

// Gate reflects whether the illustration in view is a favorite. The reading
// view is add-only unless allowRemove is set.
type Gate struct {
	store       Store
	allowRemove bool
	log         *logrus.Entry
	now         func() time.Time

	mu       sync.Mutex
	ref      string
	favorite bool
}

func NewGate(store Store, allowRemove bool, log *logrus.Entry) *Gate {
	if log == nil {
		log = logrus.WithField("component", "favorites")
	}
	return &Gate{store: store, allowRemove: allowRemove, log: log, now: time.Now}
}

// Check re-evaluates membership for a newly loaded illustration.
func (g *Gate) Check(ctx context.Context, img *story.Illustration) (bool, error) {
	if img == nil {
		g.set("", false)
		return false, nil
	}

	fav, err := g.find(ctx, img.Ref)
	if err != nil {
		return false, err
	}
	g.set(img.Ref, fav != nil)
	return fav != nil, nil
}

// IsFavorite reports the reflected state for the last checked illustration.
func (g *Gate) IsFavorite(ref string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ref == ref && g.favorite
}

// Toggle hearts img, or un-hearts it when removal is allowed, and returns
// the new state.
func (g *Gate) Toggle(ctx context.Context, img *story.Illustration, prompt string) (bool, error) {
	if img == nil {
		return false, fmt.Errorf("no illustration to favorite")
	}

	existing, err := g.find(ctx, img.Ref)
	if err != nil {
		return false, err
	}

	if existing != nil {
		if !g.allowRemove {
			g.set(img.Ref, true)
			return true, nil
		}
		if err := g.store.RemoveFavorite(ctx, existing.ID); err != nil {
			return true, fmt.Errorf("failed to remove favorite: %w", err)
		}
		g.set(img.Ref, false)
		g.log.WithField("ref", img.Ref).Info("Removed favorite")
		return false, nil
	}

	fav := story.Favorite{
		ID:       uuid.NewString(),
		ImageRef: img.Ref,
		Prompt:   prompt,
		Date:     g.now(),
		Image:    img,
	}
	if err := g.store.SaveFavorite(ctx, fav); err != nil {
		return false, fmt.Errorf("failed to save favorite: %w", err)
	}
	g.set(img.Ref, true)
	g.log.WithField("ref", img.Ref).Info("Added favorite")
	return true, nil
}

func (g *Gate) find(ctx context.Context, ref string) (*story.Favorite, error) {
	favs, err := g.store.Favorites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	for i := range favs {
		if favs[i].ImageRef == ref {
			return &favs[i], nil
		}
	}
	return nil, nil
}

func (g *Gate) set(ref string, favorite bool) {
	g.mu.Lock()
	g.ref = ref
	g.favorite = favorite
	g.mu.Unlock()
}
