package media

import (
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
)

// Cache maps page index to previously generated assets for one reading
// session. Entries never expire and each field is written at most once.
type Cache struct {
	items *cache.Cache
	log   *logrus.Entry
}

func NewCache() *Cache {
	return &Cache{
		items: cache.New(cache.NoExpiration, 0),
		log:   logrus.WithField("component", "media_cache"),
	}
}

func imageKey(index int) string {
	return fmt.Sprintf("image:%d", index)
}

func narrationKey(index int) string {
	return fmt.Sprintf("narration:%d", index)
}

// Image returns the cached illustration for a page, if any.
func (c *Cache) Image(index int) (*story.Illustration, bool) {
	if x, found := c.items.Get(imageKey(index)); found {
		return x.(*story.Illustration), true
	}
	return nil, false
}

// Narration returns the cached decoded narration for a page, if any.
func (c *Cache) Narration(index int) (*audio.Clip, bool) {
	if x, found := c.items.Get(narrationKey(index)); found {
		return x.(*audio.Clip), true
	}
	return nil, false
}

// PutImage stores an illustration unless one is already cached for the page.
// It reports whether the value was stored.
func (c *Cache) PutImage(index int, img *story.Illustration) bool {
	if img == nil {
		return false
	}
	if err := c.items.Add(imageKey(index), img, cache.NoExpiration); err != nil {
		c.log.WithField("page", index).Debug("Image already cached, keeping first")
		return false
	}
	return true
}

// PutNarration stores decoded narration unless one is already cached.
func (c *Cache) PutNarration(index int, clip *audio.Clip) bool {
	if clip == nil {
		return false
	}
	if err := c.items.Add(narrationKey(index), clip, cache.NoExpiration); err != nil {
		c.log.WithField("page", index).Debug("Narration already cached, keeping first")
		return false
	}
	return true
}

// Len returns the number of cached fields across all pages.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
