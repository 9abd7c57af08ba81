package canvas

import "sync"

// Container is the scrollable element hosting the canvas. Each Canvas is
// handed its own container so several canvases can coexist.
type Container interface {
	// Bounds is the element's bounding rectangle in screen pixels.
	Bounds() Rect
	ScrollOffset() Point
	// ClientSize is the visible size of the element.
	ClientSize() Size
	// ScrollSize is the full scrollable content size.
	ScrollSize() Size
	// ScrollTo starts a scroll to p. Smooth scrolls may complete later and
	// report through the regular scroll events.
	ScrollTo(p Point, smooth bool)
	// SetContentSize resizes the canvas element inside the container.
	SetContentSize(s Size)
}

// Viewport is the visible region of canvas space.
type Viewport struct{ X, Y, W, H float64 }

func (v Viewport) Rect() Rect { return Rect(v) }

// Tracker keeps the current viewport in sync with the container's scroll
// position and scrolls the container on behalf of other components.
type Tracker struct {
	mu        sync.RWMutex
	container Container
	vp        Viewport
	listeners map[int]func(Viewport)
	nextID    int
}

func NewTracker(c Container) *Tracker {
	t := &Tracker{container: c, listeners: make(map[int]func(Viewport))}
	t.HandleScroll()
	return t
}

func (t *Tracker) Container() Container { return t.container }

func (t *Tracker) Viewport() Viewport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vp
}

func (t *Tracker) ScrollOffset() Point { return t.container.ScrollOffset() }

// OnChange registers fn to run after every viewport update.
func (t *Tracker) OnChange(fn func(Viewport)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// HandleScroll recomputes the viewport from the container. Call it from the
// container's scroll event.
func (t *Tracker) HandleScroll() Viewport {
	scroll := t.container.ScrollOffset()
	client := t.container.ClientSize()
	content := t.container.ScrollSize()

	vp := Viewport{
		X: clamp(scroll.X, 0, content.W-client.W),
		Y: clamp(scroll.Y, 0, content.H-client.H),
		W: client.W,
		H: client.H,
	}

	t.mu.Lock()
	t.vp = vp
	listeners := make([]func(Viewport), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(vp)
	}
	return vp
}

// HandleWheel pans horizontally for any wheel motion: the canvas is wide,
// not tall, so vertical wheel deltas scroll sideways.
func (t *Tracker) HandleWheel(deltaX, deltaY float64) Point {
	scroll := t.container.ScrollOffset()
	return t.ScrollTo(Point{X: scroll.X + deltaX + deltaY, Y: scroll.Y}, false)
}

// NavigateTo smoothly scrolls so that canvas point (x, y) is centered in the
// viewport. It does not wait for the animation.
func (t *Tracker) NavigateTo(x, y float64) Point {
	client := t.container.ClientSize()
	return t.ScrollTo(Point{X: x - client.W/2, Y: y - client.H/2}, true)
}

// ScrollBy scrolls relative to the current offset.
func (t *Tracker) ScrollBy(d Point, smooth bool) Point {
	return t.ScrollTo(t.container.ScrollOffset().Add(d), smooth)
}

// ScrollTo clamps p to the valid scroll range and scrolls there.
func (t *Tracker) ScrollTo(p Point, smooth bool) Point {
	target := t.clampScroll(p)
	t.container.ScrollTo(target, smooth)
	t.HandleScroll()
	return target
}

func (t *Tracker) clampScroll(p Point) Point {
	client := t.container.ClientSize()
	content := t.container.ScrollSize()
	return Point{
		X: clamp(p.X, 0, content.W-client.W),
		Y: clamp(p.Y, 0, content.H-client.H),
	}
}
