package library

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/story"
)

// FileStore keeps the history and favorites in a single JSON document,
// with favorite pictures written alongside it.
type FileStore struct {
	dir       string
	dataFile  string
	imagesDir string
	mu        sync.Mutex
}

// storeData is the on-disk document.
type storeData struct {
	Stories     []story.Story    `json:"stories"`
	Favorites   []story.Favorite `json:"favorites"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	imagesDir := filepath.Join(dir, "favorites")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	return &FileStore{
		dir:       dir,
		dataFile:  filepath.Join(dir, "library.json"),
		imagesDir: imagesDir,
	}, nil
}

func (fs *FileStore) SaveStory(ctx context.Context, s story.Story) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return err
	}

	// Newest first
	data.Stories = append([]story.Story{s}, data.Stories...)
	if err := fs.save(data); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"story":    s.ID,
		"pages":    len(s.Pages),
		"duration": s.DurationSeconds,
	}).Info("Saved story to history")
	return nil
}

func (fs *FileStore) Stories(ctx context.Context) ([]story.Story, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, err
	}
	return data.Stories, nil
}

func (fs *FileStore) SaveFavorite(ctx context.Context, f story.Favorite) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return err
	}

	for _, existing := range data.Favorites {
		if existing.ImageRef == f.ImageRef {
			return nil
		}
	}

	if f.Image != nil && len(f.Image.Data) > 0 {
		path := filepath.Join(fs.imagesDir, fmt.Sprintf("%s.%s", f.ID, f.Image.Ext()))
		if err := os.WriteFile(path, f.Image.Data, 0644); err != nil {
			logrus.WithError(err).WithField("file", path).Warn("Failed to write favorite image")
		} else {
			f.ImagePath = path
		}
	}

	data.Favorites = append([]story.Favorite{f}, data.Favorites...)
	return fs.save(data)
}

func (fs *FileStore) Favorites(ctx context.Context) ([]story.Favorite, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, err
	}
	return data.Favorites, nil
}

func (fs *FileStore) RemoveFavorite(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return err
	}

	kept := make([]story.Favorite, 0, len(data.Favorites))
	var removed *story.Favorite
	for i := range data.Favorites {
		if data.Favorites[i].ID == id {
			removed = &data.Favorites[i]
			continue
		}
		kept = append(kept, data.Favorites[i])
	}
	if removed == nil {
		return ErrFavoriteNotFound
	}

	if removed.ImagePath != "" {
		if err := os.Remove(removed.ImagePath); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).Warn("Failed to remove favorite image")
		}
	}

	data.Favorites = kept
	return fs.save(data)
}

func (fs *FileStore) Close() error {
	return nil
}

// load reads the document, treating a missing file as empty.
func (fs *FileStore) load() (*storeData, error) {
	file, err := os.Open(fs.dataFile)
	if os.IsNotExist(err) {
		return &storeData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open library file: %w", err)
	}
	defer file.Close()

	var data storeData
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode library file: %w", err)
	}
	return &data, nil
}

// save writes the document through a temp file so a crash never leaves a
// truncated library behind.
func (fs *FileStore) save(data *storeData) error {
	data.LastUpdated = time.Now()

	tmp := fs.dataFile + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create library file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode library data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close library file: %w", err)
	}

	if err := os.Rename(tmp, fs.dataFile); err != nil {
		return fmt.Errorf("failed to replace library file: %w", err)
	}
	return nil
}
