package canvas

import "sync"

// VirtualContainer is an in-memory Container for headless use: command line
// tools, servers rendering previews, and tests. Scrolling is instantaneous.
type VirtualContainer struct {
	mu      sync.Mutex
	bounds  Rect
	content Size
	scroll  Point
}

// NewVirtualContainer returns a container whose visible area is bounds and
// whose scrollable content starts out at content.
func NewVirtualContainer(bounds Rect, content Size) *VirtualContainer {
	return &VirtualContainer{bounds: bounds, content: content}
}

func (v *VirtualContainer) Bounds() Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

func (v *VirtualContainer) ScrollOffset() Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scroll
}

func (v *VirtualContainer) ClientSize() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Size{W: v.bounds.W, H: v.bounds.H}
}

// ScrollSize never reports less than the client size, like a browser.
func (v *VirtualContainer) ScrollSize() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.content
	if s.W < v.bounds.W {
		s.W = v.bounds.W
	}
	if s.H < v.bounds.H {
		s.H = v.bounds.H
	}
	return s
}

func (v *VirtualContainer) ScrollTo(p Point, _ bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scroll = Point{
		X: clamp(p.X, 0, v.content.W-v.bounds.W),
		Y: clamp(p.Y, 0, v.content.H-v.bounds.H),
	}
}

func (v *VirtualContainer) SetContentSize(s Size) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.content = s
}

// Resize changes the visible area, e.g. on a window resize.
func (v *VirtualContainer) Resize(bounds Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bounds = bounds
}
