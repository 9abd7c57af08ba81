package canvas

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"orbit/core"
)

// DefaultItemSize is the assumed width and height of every card when
// testing it against a marquee.
const DefaultItemSize = 200

var (
	ErrNotSelecting = errors.New("selection mode is off")
	ErrNotSelected  = errors.New("item is not selected")
)

// HitTarget is what a double-click landed on.
type HitTarget int

const (
	TargetBackground HitTarget = iota
	TargetItem
	TargetOverlay
)

// Selection implements rectangular multi-select and group drag.
type Selection struct {
	mu       sync.Mutex
	tracker  *Tracker
	items    *Collection
	growth   *GrowthController
	store    Persistence
	notifier Notifier
	itemSize Size

	active   bool
	dragging bool
	start    Point
	current  Point
	ids      map[string]bool
}

func NewSelection(tracker *Tracker, items *Collection, growth *GrowthController, store Persistence, notifier Notifier, itemSize float64) *Selection {
	if itemSize <= 0 {
		itemSize = DefaultItemSize
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Selection{
		tracker:  tracker,
		items:    items,
		growth:   growth,
		store:    store,
		notifier: notifier,
		itemSize: Size{W: itemSize, H: itemSize},
		ids:      make(map[string]bool),
	}
}

// ToggleMode flips selection mode on a double-click. Only double-clicks on
// the empty background count. It returns whether the mode is now on.
func (s *Selection) ToggleMode(target HitTarget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target != TargetBackground {
		return s.active
	}
	if s.active {
		s.exitLocked()
	} else {
		s.active = true
	}
	return s.active
}

func (s *Selection) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Selection) Exit() {
	s.mu.Lock()
	s.exitLocked()
	s.mu.Unlock()
}

func (s *Selection) exitLocked() {
	s.active = false
	s.dragging = false
	s.ids = make(map[string]bool)
}

// Begin starts a marquee at screen point p.
func (s *Selection) Begin(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotSelecting
	}
	s.dragging = true
	s.start, s.current = p, p
	return nil
}

// Update moves the marquee corner to screen point p and reselects.
func (s *Selection) Update(p Point) ([]string, error) {
	s.mu.Lock()
	if !s.active || !s.dragging {
		s.mu.Unlock()
		return nil, ErrNotSelecting
	}
	s.current = p
	marquee := RectFromPoints(s.start, s.current)
	s.mu.Unlock()

	c := s.tracker.Container()
	bounds, scroll := c.Bounds(), c.ScrollOffset()
	area := RectFromPoints(
		ScreenToCanvas(marquee.Min(), bounds, scroll),
		ScreenToCanvas(marquee.Max(), bounds, scroll),
	)
	ids := s.Within(area)

	s.mu.Lock()
	s.ids = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.ids[id] = true
	}
	s.mu.Unlock()
	return ids, nil
}

// End releases the mouse; the selection stays.
func (s *Selection) End() {
	s.mu.Lock()
	s.dragging = false
	s.mu.Unlock()
}

// Marquee returns the marquee in screen space while one is being drawn.
func (s *Selection) Marquee() (Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || !s.dragging {
		return Rect{}, false
	}
	return RectFromPoints(s.start, s.current), true
}

// Within returns, in collection order, the items whose assumed bounding box
// overlaps area (canvas space).
func (s *Selection) Within(area Rect) []string {
	var ids []string
	for _, it := range s.items.Items() {
		box := Rect{X: float64(it.X), Y: float64(it.Y), W: s.itemSize.W, H: s.itemSize.H}
		if box.Intersects(area) {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (s *Selection) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.ids[id]
}

// Selected returns the selected IDs in collection order.
func (s *Selection) Selected() []string {
	s.mu.Lock()
	ids := s.ids
	s.mu.Unlock()
	var out []string
	for _, it := range s.items.Items() {
		if ids[it.ID] {
			out = append(out, it.ID)
		}
	}
	return out
}

// GroupDrag moves every selected item by the delta the anchor item moved to
// reach (x, y). All updates are sent; if any fails, the whole collection is
// put back as it was before the drag. Selection mode ends after a
// successful group drag.
func (s *Selection) GroupDrag(ctx context.Context, anchorID string, x, y int) ([]core.Item, error) {
	if !s.Active() {
		return nil, ErrNotSelecting
	}
	if !s.IsSelected(anchorID) {
		return nil, fmt.Errorf("%w: %s", ErrNotSelected, anchorID)
	}
	userID, gen := s.items.session()
	anchor, ok := s.items.Get(anchorID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, anchorID)
	}
	var group []core.Item
	for _, id := range s.Selected() {
		if it, ok := s.items.Get(id); ok {
			group = append(group, it)
		}
	}
	dx, dy := s.limitDelta(group, x-anchor.X, y-anchor.Y)

	moved := make([]core.Item, 0, len(group))
	for _, it := range group {
		it = it.Clone()
		it.X += dx
		it.Y += dy
		moved = append(moved, it)
	}
	if dx == 0 && dy == 0 {
		s.Exit()
		return moved, nil
	}

	before := s.items.snapshot()
	s.items.put(gen, moved...)

	g, gctx := errgroup.WithContext(ctx)
	for _, it := range moved {
		g.Go(func() error {
			if err := s.store.UpdateItem(gctx, it.ID, core.Fields{"x": it.X, "y": it.Y}, userID); err != nil {
				return fmt.Errorf("moving %s: %w", it.ID, err)
			}
			return nil
		})
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "count": len(moved), "dx": dx, "dy": dy})
	if err := g.Wait(); err != nil {
		s.items.restore(before)
		log.WithError(err).Error("Group move failed, reverted")
		s.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Failed to move selected elements")})
		return nil, err
	}

	log.Debug("Group moved")
	s.Exit()
	return moved, nil
}

// limitDelta shortens (dx, dy) so that every item of group lands on the
// canvas. The canvas is widened first if the rightmost item reaches its edge.
func (s *Selection) limitDelta(group []core.Item, dx, dy int) (int, int) {
	if s.growth == nil || len(group) == 0 {
		return dx, dy
	}
	minX, minY := group[0].X, group[0].Y
	maxX, maxY := minX, minY
	for _, it := range group[1:] {
		minX, maxX = min(minX, it.X), max(maxX, it.X)
		minY, maxY = min(minY, it.Y), max(maxY, it.Y)
	}

	s.growth.CheckEdge(float64(maxX + dx))
	size := s.growth.Size()
	lastX, lastY := int(math.Ceil(size.W))-1, int(math.Ceil(size.H))-1
	dx = min(max(dx, -minX), lastX-maxX)
	dy = min(max(dy, -minY), lastY-maxY)
	return dx, dy
}
