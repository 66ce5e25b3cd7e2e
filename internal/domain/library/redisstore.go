package library

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

// RedisStore keeps history and favorites as LPUSH lists so reads come back
// newest first. A set of image refs deduplicates favorites.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "wondertales"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) storiesKey() string   { return s.prefix + ":stories" }
func (s *RedisStore) favoritesKey() string { return s.prefix + ":favorites" }
func (s *RedisStore) refsKey() string      { return s.prefix + ":favorites:refs" }
func (s *RedisStore) imageKey(id string) string {
	return s.prefix + ":favorites:image:" + id
}

func (s *RedisStore) SaveStory(ctx context.Context, st story.Story) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}
	if err := s.client.LPush(ctx, s.storiesKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to store story: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"story": st.ID,
		"pages": len(st.Pages),
	}).Info("Saved story to history")
	return nil
}

func (s *RedisStore) Stories(ctx context.Context) ([]story.Story, error) {
	raw, err := s.client.LRange(ctx, s.storiesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stories: %w", err)
	}

	stories := make([]story.Story, 0, len(raw))
	for _, item := range raw {
		var st story.Story
		if err := json.Unmarshal([]byte(item), &st); err != nil {
			logrus.WithError(err).Warn("Skipping unreadable story record")
			continue
		}
		stories = append(stories, st)
	}
	return stories, nil
}

func (s *RedisStore) SaveFavorite(ctx context.Context, f story.Favorite) error {
	added, err := s.client.SAdd(ctx, s.refsKey(), f.ImageRef).Result()
	if err != nil {
		return fmt.Errorf("failed to check favorite: %w", err)
	}
	if added == 0 {
		return nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal favorite: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.favoritesKey(), data)
	if f.Image != nil && len(f.Image.Data) > 0 {
		pipe.HSet(ctx, s.imageKey(f.ID), "mime", f.Image.MIMEType, "data", f.Image.Data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.SRem(ctx, s.refsKey(), f.ImageRef)
		return fmt.Errorf("failed to store favorite: %w", err)
	}
	return nil
}

func (s *RedisStore) Favorites(ctx context.Context) ([]story.Favorite, error) {
	raw, err := s.client.LRange(ctx, s.favoritesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}

	favs := make([]story.Favorite, 0, len(raw))
	for _, item := range raw {
		var f story.Favorite
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			logrus.WithError(err).Warn("Skipping unreadable favorite record")
			continue
		}
		if img, err := s.client.HGetAll(ctx, s.imageKey(f.ID)).Result(); err == nil && img["data"] != "" {
			f.Image = &story.Illustration{Ref: f.ImageRef, MIMEType: img["mime"], Data: []byte(img["data"])}
		}
		favs = append(favs, f)
	}
	return favs, nil
}

func (s *RedisStore) RemoveFavorite(ctx context.Context, id string) error {
	raw, err := s.client.LRange(ctx, s.favoritesKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read favorites: %w", err)
	}

	for _, item := range raw {
		var f story.Favorite
		if err := json.Unmarshal([]byte(item), &f); err != nil || f.ID != id {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.LRem(ctx, s.favoritesKey(), 1, item)
		pipe.SRem(ctx, s.refsKey(), f.ImageRef)
		pipe.Del(ctx, s.imageKey(f.ID))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove favorite: %w", err)
		}
		return nil
	}
	return ErrFavoriteNotFound
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
