package library

import (
	"context"
	"errors"
	"fmt"
	"math"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

var ErrFavoriteNotFound = errors.New("library: favorite not found")

// Library persists finished stories and favorite illustrations. Both lists
// are returned newest first.
type Library interface {
	SaveStory(ctx context.Context, s story.Story) error
	Stories(ctx context.Context) ([]story.Story, error)

	// SaveFavorite is a no-op when a favorite with the same ImageRef exists.
	SaveFavorite(ctx context.Context, f story.Favorite) error
	Favorites(ctx context.Context) ([]story.Favorite, error)
	RemoveFavorite(ctx context.Context, id string) error

	Close() error
}

// ReadingStats summarises the history for the parent dashboard.
type ReadingStats struct {
	TotalStories     int
	TotalTimeMinutes int
}

func Stats(stories []story.Story) ReadingStats {
	total := 0
	for _, s := range stories {
		total += s.DurationSeconds
	}
	return ReadingStats{
		TotalStories:     len(stories),
		TotalTimeMinutes: int(math.Round(float64(total) / 60)),
	}
}

// Open returns the store selected by library.type.
func Open(cfg *config.Config) (Library, error) {
	switch cfg.Library.Type {
	case "", "file":
		return NewFileStore(cfg.Library.Path)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported library type: %s", cfg.Library.Type)
	}
}
