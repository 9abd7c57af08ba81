package canvas

import (
	"math"

	"orbit/core"
)

const (
	DefaultMinimapWidth  = 200
	DefaultMinimapHeight = 100
	// DefaultMinimapScale is canvas units per minimap pixel, on both axes.
	DefaultMinimapScale = 20
)

type MinimapOptions struct {
	Width, Height  float64
	ScaleX, ScaleY float64
}

func (o MinimapOptions) withDefaults() MinimapOptions {
	if o.Width <= 0 {
		o.Width = DefaultMinimapWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultMinimapHeight
	}
	if o.ScaleX <= 0 {
		o.ScaleX = DefaultMinimapScale
	}
	if o.ScaleY <= 0 {
		o.ScaleY = DefaultMinimapScale
	}
	return o
}

type (
	MinimapMarker struct {
		ID   string
		Kind core.Kind
		X, Y float64
		// Visible is false when the marker falls outside the minimap.
		Visible bool
	}

	// MinimapFrame is everything needed to draw the minimap once.
	MinimapFrame struct {
		Width, Height float64
		Shift         float64
		Markers       []MinimapMarker
		Viewport      Rect
	}
)

// Minimap projects canvas space onto a fixed-size overview. It only reads
// state; it never moves items or resizes the canvas.
type Minimap struct {
	opts    MinimapOptions
	tracker *Tracker
}

func NewMinimap(tracker *Tracker, opts MinimapOptions) *Minimap {
	return &Minimap{opts: opts.withDefaults(), tracker: tracker}
}

func (m *Minimap) Options() MinimapOptions { return m.opts }

// Shift is how far item projections slide left so that the viewport's right
// edge stays on the minimap once the canvas outgrows the minimap's scale.
func (m *Minimap) Shift(vp Viewport) float64 {
	return math.Max(0, (vp.X+vp.W)/m.opts.ScaleX-m.opts.Width)
}

// ProjectPoint maps a canvas point to minimap pixels for a given shift.
func (m *Minimap) ProjectPoint(p Point, shift float64) Point {
	return Point{X: p.X/m.opts.ScaleX - shift, Y: p.Y / m.opts.ScaleY}
}

// Unproject maps a minimap pixel back into canvas space.
func (m *Minimap) Unproject(p Point, shift float64) Point {
	return Point{X: (p.X + shift) * m.opts.ScaleX, Y: p.Y * m.opts.ScaleY}
}

// ProjectViewport returns the viewport indicator, clamped inside the minimap.
func (m *Minimap) ProjectViewport(vp Viewport, shift float64) Rect {
	w := math.Min(vp.W/m.opts.ScaleX, m.opts.Width)
	h := math.Min(vp.H/m.opts.ScaleY, m.opts.Height)
	origin := m.ProjectPoint(Point{X: vp.X, Y: vp.Y}, shift)
	return Rect{
		X: clamp(origin.X, 0, m.opts.Width-w),
		Y: clamp(origin.Y, 0, m.opts.Height-h),
		W: w,
		H: h,
	}
}

// Project renders items and the current viewport into a frame.
func (m *Minimap) Project(items []core.Item) MinimapFrame {
	vp := m.tracker.Viewport()
	shift := m.Shift(vp)
	bounds := Rect{W: m.opts.Width, H: m.opts.Height}

	frame := MinimapFrame{
		Width:    m.opts.Width,
		Height:   m.opts.Height,
		Shift:    shift,
		Markers:  make([]MinimapMarker, 0, len(items)),
		Viewport: m.ProjectViewport(vp, shift),
	}
	for _, it := range items {
		p := m.ProjectPoint(Point{X: float64(it.X), Y: float64(it.Y)}, shift)
		frame.Markers = append(frame.Markers, MinimapMarker{
			ID:      it.ID,
			Kind:    it.Kind,
			X:       p.X,
			Y:       p.Y,
			Visible: bounds.Contains(p),
		})
	}
	return frame
}

// Navigate centers the viewport on the canvas point under minimap pixel
// (x, y) and returns that canvas point.
func (m *Minimap) Navigate(x, y float64) Point {
	target := m.Unproject(Point{X: x, Y: y}, m.Shift(m.tracker.Viewport()))
	m.tracker.NavigateTo(target.X, target.Y)
	return target
}
