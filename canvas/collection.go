package canvas

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"orbit/core"
)

const (
	DefaultPageSize = 10
	// LoadMoreDistance is how close to the bottom, in pixels, the scroll
	// position must be before the next page is requested.
	LoadMoreDistance = 50

	// localPage holds items created during the session. Real pages start at 1.
	localPage = 0
)

var ErrNoUser = errors.New("no user session")

type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateLoaded
	StateExhausted
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

type pageKey struct {
	userID string
	page   int
}

// snapshot is a point-in-time copy of the collection used for rollback.
type snapshot struct {
	generation uint64
	items      []core.Item
	cache      map[pageKey][]core.Item
}

// Collection loads a user's items page by page, caches every page, and
// publishes a merged, de-duplicated list. The published slice is never
// modified in place; every change swaps in a new one.
type Collection struct {
	mu         sync.Mutex
	store      Persistence
	notifier   Notifier
	pageSize   int
	userID     string
	generation uint64
	cache      map[pageKey][]core.Item
	items      []core.Item
	nextPage   int
	lastLoaded int
	inflight   map[int]bool
	exhausted  bool

	subMu  sync.Mutex
	subs   map[int]func([]core.Item)
	nextID int
	// pubMu serializes publishing so subscribers never see an older
	// collection after a newer one.
	pubMu sync.Mutex
}

func NewCollection(store Persistence, notifier Notifier, pageSize int) *Collection {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	c := &Collection{
		store:    store,
		notifier: notifier,
		pageSize: pageSize,
		subs:     make(map[int]func([]core.Item)),
	}
	c.resetLocked("")
	return c
}

func (c *Collection) resetLocked(userID string) {
	c.userID = userID
	c.generation++
	c.cache = make(map[pageKey][]core.Item)
	c.items = nil
	c.nextPage = 1
	c.lastLoaded = 0
	c.inflight = make(map[int]bool)
	c.exhausted = false
}

// SetUser starts a fresh session. Everything cached for the previous user
// is dropped, and responses still in flight for that user are ignored when
// they arrive.
func (c *Collection) SetUser(userID string) {
	c.mu.Lock()
	c.resetLocked(userID)
	c.mu.Unlock()
	c.publish()
}

func (c *Collection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Items returns the current visible collection.
func (c *Collection) Items() []core.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Get(id string) (core.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return core.Item{}, false
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HasMore is false once an empty page has been seen.
func (c *Collection) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.exhausted
}

// NextPage is the page the next scroll-triggered load requests.
func (c *Collection) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextPage
}

// State reports where the session is in its loading lifecycle and the page
// it concerns.
func (c *Collection) State() (LoadState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.exhausted:
		return StateExhausted, c.lastLoaded
	case len(c.inflight) > 0:
		pages := make([]int, 0, len(c.inflight))
		for p := range c.inflight {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		return StateLoading, pages[len(pages)-1]
	case c.lastLoaded > 0:
		return StateLoaded, c.lastLoaded
	default:
		return StateIdle, 0
	}
}

// Subscribe registers fn to receive every new collection.
func (c *Collection) Subscribe(fn func([]core.Item)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Collection) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	items := c.Items()
	c.subMu.Lock()
	subs := make([]func([]core.Item), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(items)
	}
}

// LoadPage merges one page into the collection. A cached page is merged
// without touching the network. A failed fetch leaves the collection as it
// was and keeps HasMore true so the next scroll can retry.
func (c *Collection) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}

	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return ErrNoUser
	}
	key := pageKey{userID: c.userID, page: page}
	if cached, ok := c.cache[key]; ok {
		changed := c.mergeLocked(cached)
		c.mu.Unlock()
		if changed {
			c.publish()
		}
		return nil
	}
	if c.inflight[page] {
		c.mu.Unlock()
		return nil
	}
	c.inflight[page] = true
	gen, userID := c.generation, c.userID
	c.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "page": page})
	items, err := c.store.ListItems(ctx, userID, page, c.pageSize)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Debug("Dropping page loaded for a previous session")
		return nil
	}
	delete(c.inflight, page)
	if err != nil {
		c.mu.Unlock()
		log.WithError(err).Error("Failed to load items")
		c.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Failed to load elements")})
		return fmt.Errorf("loading page %d: %w", page, err)
	}
	if len(items) == 0 {
		// Cached so asking for the page again stays off the network.
		c.cache[key] = []core.Item{}
		c.exhausted = true
		c.mu.Unlock()
		log.Debug("No more items")
		return nil
	}

	fetched := make([]core.Item, len(items))
	copy(fetched, items)
	c.cache[key] = fetched
	changed := c.mergeLocked(fetched)
	if page >= c.nextPage {
		c.nextPage = page + 1
	}
	if page > c.lastLoaded {
		c.lastLoaded = page
	}
	c.mu.Unlock()

	log.WithField("count", len(fetched)).Debug("Page loaded")
	if changed {
		c.publish()
	}
	return nil
}

// MaybeLoadMore requests the next page when the scroll position is within
// LoadMoreDistance of the bottom. It reports whether a load was attempted.
func (c *Collection) MaybeLoadMore(ctx context.Context, scrollTop, clientHeight, scrollHeight float64) (bool, error) {
	if scrollHeight-(scrollTop+clientHeight) > LoadMoreDistance {
		return false, nil
	}
	c.mu.Lock()
	if c.userID == "" || c.exhausted || len(c.inflight) > 0 {
		c.mu.Unlock()
		return false, nil
	}
	page := c.nextPage
	c.mu.Unlock()
	return true, c.LoadPage(ctx, page)
}

// mergeLocked appends the items whose IDs are not yet visible. Items already
// present keep their place and their current state.
func (c *Collection) mergeLocked(items []core.Item) bool {
	seen := make(map[string]bool, len(c.items)+len(items))
	for _, it := range c.items {
		seen[it.ID] = true
	}
	var merged []core.Item
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		if merged == nil {
			merged = make([]core.Item, len(c.items), len(c.items)+len(items))
			copy(merged, c.items)
		}
		merged = append(merged, it)
	}
	if merged == nil {
		return false
	}
	c.items = merged
	return true
}

// session returns the generation mutations must be tagged with.
func (c *Collection) session() (userID string, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.generation
}

// put replaces existing items by ID, in the visible list and in every cached
// page holding them. Mutations from a previous session are ignored.
func (c *Collection) put(gen uint64, updated ...core.Item) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	byID := make(map[string]core.Item, len(updated))
	for _, it := range updated {
		byID[it.ID] = it
	}
	replace := func(src []core.Item) ([]core.Item, bool) {
		var out []core.Item
		for i, it := range src {
			if repl, ok := byID[it.ID]; ok {
				if out == nil {
					out = make([]core.Item, len(src))
					copy(out, src)
				}
				out[i] = repl
			}
		}
		if out == nil {
			return src, false
		}
		return out, true
	}
	items, changed := replace(c.items)
	c.items = items
	for key, page := range c.cache {
		if repl, ok := replace(page); ok {
			c.cache[key] = repl
		}
	}
	c.mu.Unlock()
	if changed {
		c.publish()
	}
	return changed
}

// add appends a newly created item and records it in the session's local page.
func (c *Collection) add(gen uint64, it core.Item) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	key := pageKey{userID: c.userID, page: localPage}
	local := append(append([]core.Item(nil), c.cache[key]...), it)
	c.cache[key] = local
	changed := c.mergeLocked([]core.Item{it})
	c.mu.Unlock()
	if changed {
		c.publish()
	}
	return changed
}

func (c *Collection) remove(gen uint64, id string) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	without := func(src []core.Item) ([]core.Item, bool) {
		for i, it := range src {
			if it.ID == id {
				out := make([]core.Item, 0, len(src)-1)
				out = append(out, src[:i]...)
				return append(out, src[i+1:]...), true
			}
		}
		return src, false
	}
	items, changed := without(c.items)
	c.items = items
	for key, page := range c.cache {
		if rest, ok := without(page); ok {
			c.cache[key] = rest
		}
	}
	c.mu.Unlock()
	if changed {
		c.publish()
	}
	return changed
}

func (c *Collection) snapshot() snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache := make(map[pageKey][]core.Item, len(c.cache))
	for k, v := range c.cache {
		cache[k] = v
	}
	return snapshot{generation: c.generation, items: c.items, cache: cache}
}

// restore swaps a snapshot back in, unless the session has changed since.
// Pages that finished loading and items created after the snapshot was
// taken are kept.
func (c *Collection) restore(s snapshot) bool {
	c.mu.Lock()
	if s.generation != c.generation {
		c.mu.Unlock()
		return false
	}
	var later [][]core.Item
	for key, page := range c.cache {
		if key.page == localPage {
			if added := createdSince(s.cache[key], page); len(added) > 0 {
				s.cache[key] = append(append([]core.Item(nil), s.cache[key]...), added...)
				later = append(later, added)
			}
			continue
		}
		if _, ok := s.cache[key]; !ok {
			s.cache[key] = page
			later = append(later, page)
		}
	}
	c.items = s.items
	c.cache = s.cache
	for _, page := range later {
		c.mergeLocked(page)
	}
	c.mu.Unlock()
	c.publish()
	return true
}

// createdSince returns the items of cur whose ids are not in old.
func createdSince(old, cur []core.Item) []core.Item {
	seen := make(map[string]bool, len(old))
	for _, it := range old {
		seen[it.ID] = true
	}
	var added []core.Item
	for _, it := range cur {
		if !seen[it.ID] {
			added = append(added, it)
		}
	}
	return added
}
