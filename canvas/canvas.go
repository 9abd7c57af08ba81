package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"orbit/core"
)

// CatchupSize is how many open tasks Catchup returns.
const CatchupSize = 2

type Options struct {
	PageSize int
	Growth   GrowthOptions
	Minimap  MinimapOptions
	// ItemSize is the assumed card size used by the marquee.
	ItemSize float64
	Widths   WidthStore
	Notifier Notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

// Canvas wires the engine's components around one container and one
// persistence collaborator.
type Canvas struct {
	store     Persistence
	notifier  Notifier
	now       func() time.Time
	tracker   *Tracker
	growth    *GrowthController
	minimap   *Minimap
	items     *Collection
	placement *Placement
	selection *Selection

	mu     sync.Mutex
	online bool
}

func New(container Container, store Persistence, opts Options) *Canvas {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	tracker := NewTracker(container)
	items := NewCollection(store, notifier, opts.PageSize)
	growth := NewGrowthController(tracker, opts.Widths, opts.Growth)
	placement := NewPlacement(tracker, growth, items, store, notifier)
	placement.now = now

	return &Canvas{
		store:     store,
		notifier:  notifier,
		now:       now,
		tracker:   tracker,
		growth:    growth,
		minimap:   NewMinimap(tracker, opts.Minimap),
		items:     items,
		placement: placement,
		selection: NewSelection(tracker, items, growth, store, notifier, opts.ItemSize),
		online:    true,
	}
}

func (c *Canvas) Tracker() *Tracker { return c.tracker }
func (c *Canvas) Growth() *GrowthController { return c.growth }
func (c *Canvas) Minimap() *Minimap { return c.minimap }
func (c *Canvas) Collection() *Collection { return c.items }
func (c *Canvas) Placement() *Placement { return c.placement }
func (c *Canvas) Selection() *Selection { return c.selection }
func (c *Canvas) Viewport() Viewport { return c.tracker.Viewport() }
func (c *Canvas) GetVisibleItems() []core.Item { return c.items.Items() }

// OnCollectionChanged registers fn to receive every new visible collection.
func (c *Canvas) OnCollectionChanged(fn func([]core.Item)) (unsubscribe func()) {
	return c.items.Subscribe(fn)
}

// SetUser switches the canvas to userID: the collection and selection are
// reset, the user's canvas width is restored, and the first page is loaded.
func (c *Canvas) SetUser(ctx context.Context, userID string) error {
	c.selection.Exit()
	c.placement.Cancel()
	c.items.SetUser(userID)
	c.growth.Restore(userID)
	if userID == "" {
		return nil
	}
	logrus.WithField("user_id", userID).Info("Canvas session started")
	return c.items.LoadPage(ctx, 1)
}

// LoadMore requests the next page regardless of scroll position.
func (c *Canvas) LoadMore(ctx context.Context) error {
	if !c.items.HasMore() {
		return nil
	}
	return c.items.LoadPage(ctx, c.items.NextPage())
}

// HandleScroll is called from the container's scroll event. It refreshes the
// viewport and loads the next page when the bottom is near.
func (c *Canvas) HandleScroll(ctx context.Context) (Viewport, error) {
	vp := c.tracker.HandleScroll()
	scroll := c.tracker.ScrollOffset()
	client := c.tracker.Container().ClientSize()
	content := c.tracker.Container().ScrollSize()
	_, err := c.items.MaybeLoadMore(ctx, scroll.Y, client.H, content.H)
	return vp, err
}

func (c *Canvas) HandleWheel(deltaX, deltaY float64) Point {
	return c.tracker.HandleWheel(deltaX, deltaY)
}

func (c *Canvas) NavigateTo(x, y float64) Point {
	return c.tracker.NavigateTo(x, y)
}

// MinimapFrame projects the visible collection onto the minimap.
func (c *Canvas) MinimapFrame() MinimapFrame {
	return c.minimap.Project(c.items.Items())
}

// MinimapClick navigates to the canvas point under a minimap click.
func (c *Canvas) MinimapClick(x, y float64) Point {
	return c.minimap.Navigate(x, y)
}

func (c *Canvas) DragStart(pointer Point, element Rect, source DragSource) {
	c.placement.DragStart(pointer, element, source)
}

// Drop finishes the current drag. Dropping a selected item while selection
// mode is on moves the whole selection.
func (c *Canvas) Drop(ctx context.Context, pointer Point) ([]core.Item, error) {
	source, x, y, err := c.placement.Release(pointer)
	if err != nil {
		return nil, err
	}
	switch {
	case source.IsPalette():
		kind, err := ClassifyPalette(source.Palette)
		if err != nil {
			c.notifier.Notify(Notification{Level: LevelWarning, Message: fmt.Sprintf("Cannot place %q on the canvas", source.Palette)})
			return nil, err
		}
		it, err := c.placement.Create(ctx, kind, x, y, nil)
		if err != nil {
			return nil, err
		}
		return []core.Item{it}, nil
	case c.selection.IsSelected(source.ItemID):
		return c.selection.GroupDrag(ctx, source.ItemID, x, y)
	default:
		it, err := c.placement.Move(ctx, source.ItemID, x, y)
		if err != nil {
			return nil, err
		}
		return []core.Item{it}, nil
	}
}

// MoveItem moves one item to (x, y), clamped into the canvas.
func (c *Canvas) MoveItem(ctx context.Context, id string, x, y int) (core.Item, error) {
	c.growth.CheckEdge(float64(x))
	size := c.growth.Size()
	x, y = Round(ClampToCanvas(Point{X: float64(x), Y: float64(y)}, size.W, size.H))
	return c.placement.Move(ctx, id, x, y)
}

// CreateItemAt creates a card of kind at (x, y). fields override the
// kind's defaults.
func (c *Canvas) CreateItemAt(ctx context.Context, kind core.Kind, x, y int, fields core.Fields) (core.Item, error) {
	c.growth.CheckEdge(float64(x))
	size := c.growth.Size()
	x, y = Round(ClampToCanvas(Point{X: float64(x), Y: float64(y)}, size.W, size.H))
	return c.placement.Create(ctx, kind, x, y, fields)
}

// RemoveItem deletes an item. It leaves the collection only after the
// collaborator confirms.
func (c *Canvas) RemoveItem(ctx context.Context, id string) error {
	userID, gen := c.items.session()
	if userID == "" {
		return ErrNoUser
	}
	it, ok := c.items.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id})
	if err := c.store.DeleteItem(ctx, id, userID); err != nil {
		log.WithError(err).Error("Failed to delete item")
		c.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Failed to delete element")})
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	c.items.remove(gen, id)
	log.Info("Item deleted")
	c.notifier.Notify(Notification{Level: LevelSuccess, Message: cards[it.Kind].label + " deleted successfully"})
	return nil
}

// EditItem sends the editable fields of edit that differ from the item. An
// edit that changes nothing makes no request.
func (c *Canvas) EditItem(ctx context.Context, id string, edit core.Fields) (core.Item, error) {
	userID, gen := c.items.session()
	if userID == "" {
		return core.Item{}, ErrNoUser
	}
	it, ok := c.items.Get(id)
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	changed := ChangedFields(it, edit)
	if len(changed) == 0 {
		return it, nil
	}

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id})
	if err := c.store.UpdateItem(ctx, id, changed, userID); err != nil {
		log.WithError(err).Error("Failed to update item")
		c.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Failed to save changes")})
		return it, fmt.Errorf("updating %s: %w", id, err)
	}
	updated := it.Clone()
	updated.Apply(core.Patch{Fields: changed})
	c.items.put(gen, updated)
	log.WithField("fields", len(changed)).Debug("Item updated")
	return updated, nil
}

// ResetRepeatingTasks unchecks repeating tasks completed on an earlier day.
// It returns how many were reset.
func (c *Canvas) ResetRepeatingTasks(ctx context.Context) (int, error) {
	today := c.now()
	var errs []error
	n := 0
	for _, it := range c.items.Items() {
		if !NeedsDailyReset(it, today) {
			continue
		}
		_, err := c.EditItem(ctx, it.ID, core.Fields{
			"completed":  false,
			"last_reset": today.Format(dateLayout),
			"is_edited":  true,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Catchup returns the first open tasks on the canvas.
func (c *Canvas) Catchup() []core.Item {
	return UpcomingTasks(c.items.Items(), CatchupSize)
}

// Search finds items matching query, title matches first. The collaborator
// searches when it can; otherwise the loaded items are filtered.
func (c *Canvas) Search(ctx context.Context, query string) ([]core.Item, error) {
	q := core.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	var pool []core.Item
	if s, ok := c.store.(Searcher); ok {
		userID := c.items.UserID()
		if userID == "" {
			return nil, ErrNoUser
		}
		found, err := s.SearchItems(ctx, userID, q)
		if err != nil {
			c.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Search failed")})
			return nil, fmt.Errorf("searching %q: %w", q, err)
		}
		pool = found
	} else {
		pool = c.items.Items()
	}

	ptrs := make([]*core.Item, len(pool))
	for i := range pool {
		ptrs[i] = &pool[i]
	}
	matched := core.FilterMatches(ptrs, q)
	out := make([]core.Item, len(matched))
	for i, it := range matched {
		out[i] = *it
	}
	return out, nil
}

// Jump centers the viewport on an item, usually a search result.
func (c *Canvas) Jump(it core.Item) Point {
	return c.tracker.NavigateTo(float64(it.X), float64(it.Y))
}

// SetOnline records connectivity changes. Going offline raises a standing
// notification; the collection is left alone.
func (c *Canvas) SetOnline(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	c.mu.Unlock()
	if !changed {
		return
	}
	if online {
		c.notifier.Notify(Notification{Level: LevelSuccess, Message: "Back online"})
		return
	}
	c.notifier.Notify(Notification{Level: LevelWarning, Message: "No internet connection", Standing: true})
}

func (c *Canvas) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}
