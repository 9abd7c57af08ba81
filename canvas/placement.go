package canvas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"orbit/core"
)

var (
	ErrNoActiveDrag = errors.New("no drag in progress")
	ErrUnknownItem  = errors.New("item is not on the canvas")
)

// DragSource is what a drag started from: an item already on the canvas,
// or a palette entry that creates a new one.
type DragSource struct {
	ItemID  string
	Palette string
}

func ItemSource(id string) DragSource { return DragSource{ItemID: id} }

func PaletteSource(token string) DragSource { return DragSource{Palette: token} }

func (s DragSource) IsPalette() bool { return s.ItemID == "" && s.Palette != "" }

func (s DragSource) String() string {
	if s.IsPalette() {
		return "palette:" + s.Palette
	}
	return "item:" + s.ItemID
}

type drag struct {
	source DragSource
	offset Point
}

// Placement turns pointer gestures into item moves and creations.
type Placement struct {
	mu       sync.Mutex
	tracker  *Tracker
	growth   *GrowthController
	items    *Collection
	store    Persistence
	notifier Notifier
	now      func() time.Time
	active   *drag
}

func NewPlacement(tracker *Tracker, growth *GrowthController, items *Collection, store Persistence, notifier Notifier) *Placement {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Placement{
		tracker:  tracker,
		growth:   growth,
		items:    items,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// DragStart records where inside the dragged element the pointer grabbed
// it, so the drop lands the element where the user sees it rather than at
// its top-left corner. element is the element's screen bounding box.
func (p *Placement) DragStart(pointer Point, element Rect, source DragSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = &drag{source: source, offset: pointer.Sub(element.Min())}
}

// Dragging returns the source of the current drag, if any.
func (p *Placement) Dragging() (DragSource, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return DragSource{}, false
	}
	return p.active.source, true
}

func (p *Placement) Cancel() {
	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
}

// Release ends the drag and computes the drop position: pointer converted to
// canvas space minus the grab offset, rounded, widening the canvas when the
// position is near its edge, and clamped into the canvas.
func (p *Placement) Release(pointer Point) (DragSource, int, int, error) {
	p.mu.Lock()
	d := p.active
	p.active = nil
	p.mu.Unlock()
	if d == nil {
		return DragSource{}, 0, 0, ErrNoActiveDrag
	}

	c := p.tracker.Container()
	pos := ScreenToCanvas(pointer, c.Bounds(), c.ScrollOffset()).Sub(d.offset)
	x, y := Round(pos)
	p.growth.CheckEdge(float64(x))
	size := p.growth.Size()
	x, y = Round(ClampToCanvas(Point{X: float64(x), Y: float64(y)}, size.W, size.H))
	return d.source, x, y, nil
}

// Drop finishes the current drag: an existing item is moved, a palette entry
// becomes a new item.
func (p *Placement) Drop(ctx context.Context, pointer Point) (core.Item, error) {
	source, x, y, err := p.Release(pointer)
	if err != nil {
		return core.Item{}, err
	}
	if source.IsPalette() {
		kind, err := ClassifyPalette(source.Palette)
		if err != nil {
			p.notifier.Notify(Notification{Level: LevelWarning, Message: fmt.Sprintf("Cannot place %q on the canvas", source.Palette)})
			return core.Item{}, err
		}
		return p.Create(ctx, kind, x, y, nil)
	}
	return p.Move(ctx, source.ItemID, x, y)
}

// Move sets an item's position. The move shows immediately and is reverted
// if the update fails. Nothing is sent when the position is unchanged.
func (p *Placement) Move(ctx context.Context, id string, x, y int) (core.Item, error) {
	userID, gen := p.items.session()
	if userID == "" {
		return core.Item{}, ErrNoUser
	}
	orig, ok := p.items.Get(id)
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if orig.X == x && orig.Y == y {
		return orig, nil
	}

	moved := orig.Clone()
	moved.X, moved.Y = x, y
	p.items.put(gen, moved)

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id, "x": x, "y": y})
	if err := p.store.UpdateItem(ctx, id, core.Fields{"x": x, "y": y}, userID); err != nil {
		p.items.put(gen, orig)
		log.WithError(err).Error("Failed to move item")
		p.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, "Failed to move element")})
		return orig, fmt.Errorf("moving %s: %w", id, err)
	}
	log.Debug("Item moved")
	return moved, nil
}

// Create persists a new item of kind at (x, y). fields override the kind's
// defaults. The item joins the collection only once the collaborator has
// assigned its ID.
func (p *Placement) Create(ctx context.Context, kind core.Kind, x, y int, fields core.Fields) (core.Item, error) {
	userID, gen := p.items.session()
	if userID == "" {
		return core.Item{}, ErrNoUser
	}
	if !kind.Valid() {
		return core.Item{}, fmt.Errorf("%w: unknown kind %q", core.ErrInvalidItem, kind)
	}

	payload := DefaultFields(kind, p.now())
	for k, v := range fields {
		if !core.IsReserved(k) {
			payload[k] = v
		}
	}
	draft := core.Item{Kind: kind, X: x, Y: y, Fields: payload}

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "kind": kind, "x": x, "y": y})
	created, err := p.store.CreateItem(ctx, userID, draft)
	if err != nil {
		log.WithError(err).Error("Failed to create item")
		p.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, fmt.Sprintf("Failed to add %s", strings.ToLower(cards[kind].label)))})
		return core.Item{}, fmt.Errorf("creating %s: %w", kind, err)
	}
	if created.ID == "" {
		return core.Item{}, fmt.Errorf("creating %s: %w: no id assigned", kind, core.ErrInvalidItem)
	}
	if created.Kind == "" {
		created.Kind = kind
	}

	p.items.add(gen, created)
	log.WithField("item_id", created.ID).Info("Item created")
	p.notifier.Notify(Notification{Level: LevelSuccess, Message: cards[kind].label + " added successfully"})
	return created, nil
}
