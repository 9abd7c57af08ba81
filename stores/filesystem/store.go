package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"orbit/core"
)

const itemExt = ".json"

// fsStore keeps one JSON file per item under <basePath>/<userID>/<itemID>.json.
type fsStore struct {
	mu       sync.Mutex
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

func (s *fsStore) userPath(userID string) (string, error) {
	if err := checkName(userID); err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	return filepath.Join(s.basePath, userID), nil
}

func (s *fsStore) itemPath(userID, id string) (string, error) {
	userPath, err := s.userPath(userID)
	if err != nil {
		return "", err
	}
	if err := checkName(id); err != nil {
		return "", fmt.Errorf("%w: invalid item id", core.ErrNotFound)
	}
	return filepath.Join(userPath, id+itemExt), nil
}

// checkName rejects anything that could escape the user's directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("must not be empty or a dot directory")
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("must not be a path")
	}
	return nil
}

func (s *fsStore) readAll(userID string) ([]*core.Item, error) {
	userPath, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "path": userPath})

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Item{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	items := make([]*core.Item, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != itemExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read item file %s, skipping", file.Name())
			continue
		}
		var it core.Item
		if err := json.Unmarshal(data, &it); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal item file %s, skipping", file.Name())
			continue
		}
		it.UserID = userID
		items = append(items, &it)
	}
	core.SortByID(items)
	return items, nil
}

func (s *fsStore) read(userID, id string) (*core.Item, string, error) {
	filePath, err := s.itemPath(userID, id)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, filePath, fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return nil, filePath, err
	}
	var it core.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, filePath, fmt.Errorf("decoding %s: %w", filePath, err)
	}
	it.UserID = userID
	return &it, filePath, nil
}

// write replaces the file atomically so a crash never leaves half an item.
func (s *fsStore) write(filePath string, it *core.Item) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(it)
	if err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

func (s *fsStore) List(ctx context.Context, userID string, page, pageSize int) ([]*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll(userID)
	if err != nil {
		return nil, err
	}
	start, end := core.PageBounds(len(all), page, pageSize)
	logrus.WithFields(logrus.Fields{"user_id": userID, "page": page}).Debugf("Listed %d items", end-start)
	return all[start:end], nil
}

func (s *fsStore) Create(ctx context.Context, it *core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	it.ID = ulid.Make().String()
	it.CreatedAt, it.UpdatedAt = now, now

	filePath, err := s.itemPath(it.UserID, it.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": it.UserID, "item_id": it.ID, "path": filePath})
	if err := s.write(filePath, it); err != nil {
		log.WithError(err).Error("Failed to write item file")
		return err
	}
	log.Info("Item created successfully")
	return nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, _, err := s.read(userID, id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id}).WithError(err).Warn("Failed to read item")
		return nil, err
	}
	return it, nil
}

func (s *fsStore) Update(ctx context.Context, userID, id string, patch core.Patch) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, filePath, err := s.read(userID, id)
	if err != nil {
		return nil, err
	}
	it.Apply(patch)
	it.UpdatedAt = time.Now().UTC()

	if err := s.write(filePath, it); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id, "path": filePath}).WithError(err).Error("Failed to write item file")
		return nil, err
	}
	return it, nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath, err := s.itemPath(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Item file not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		log.WithError(err).Error("Failed to delete item file")
		return err
	}
	log.Info("Item deleted successfully")
	return nil
}

func (s *fsStore) Search(ctx context.Context, userID, query string) ([]*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll(userID)
	if err != nil {
		return nil, err
	}
	return core.FilterMatches(all, query), nil
}
