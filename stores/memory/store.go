package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"orbit/core"
)

// memStore keeps items in process memory. Everything is lost on restart.
type memStore struct {
	mu sync.RWMutex
	// items maps userID to that user's items keyed by item ID.
	items map[string]map[string]*core.Item
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{items: make(map[string]map[string]*core.Item)}
}

func (s *memStore) sorted(userID string) []*core.Item {
	userItems := s.items[userID]
	out := make([]*core.Item, 0, len(userItems))
	for _, it := range userItems {
		c := it.Clone()
		out = append(out, &c)
	}
	core.SortByID(out)
	return out
}

// List returns one page of a user's items in creation order.
func (s *memStore) List(ctx context.Context, userID string, page, pageSize int) ([]*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted(userID)
	start, end := core.PageBounds(len(all), page, pageSize)
	items := all[start:end]

	logrus.WithFields(logrus.Fields{"user_id": userID, "page": page}).Debugf("Listed %d items", len(items))
	return items, nil
}

func (s *memStore) Create(ctx context.Context, it *core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userItems, ok := s.items[it.UserID]
	if !ok {
		userItems = make(map[string]*core.Item)
		s.items[it.UserID] = userItems
	}

	now := time.Now().UTC()
	it.ID = ulid.Make().String()
	it.CreatedAt, it.UpdatedAt = now, now
	stored := it.Clone()
	userItems[it.ID] = &stored

	logrus.WithFields(logrus.Fields{"user_id": it.UserID, "item_id": it.ID, "kind": it.Kind}).Info("Item created successfully")
	return nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[userID][id]
	if !ok {
		logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id}).Warn("Item not found for user")
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	c := it.Clone()
	return &c, nil
}

func (s *memStore) Update(ctx context.Context, userID, id string, patch core.Patch) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id})
	it, ok := s.items[userID][id]
	if !ok {
		log.Warn("Item not found for update")
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	updated := it.Clone()
	updated.Apply(patch)
	updated.UpdatedAt = time.Now().UTC()
	s.items[userID][id] = &updated

	log.Debug("Item updated successfully")
	c := updated.Clone()
	return &c, nil
}

func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id})
	if _, ok := s.items[userID][id]; !ok {
		log.Warn("Item not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	delete(s.items[userID], id)
	log.Info("Item deleted successfully")
	return nil
}

func (s *memStore) Search(ctx context.Context, userID, query string) ([]*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.FilterMatches(s.sorted(userID), query), nil
}
