// Package canvas implements the positioning and spatial-navigation engine of
// an infinite canvas: coordinate conversion, viewport tracking, incremental
// canvas growth, the minimap projection, paginated item loading, drag/drop
// placement and rectangular multi-select.
//
// The engine is headless. The scrollable element it drives is passed in as a
// Container, and items are persisted through a Persistence implementation.
package canvas

import "math"

type (
	Point struct{ X, Y float64 }
	Size  struct{ W, H float64 }

	// Rect is an axis-aligned rectangle with its origin at the top-left corner.
	Rect struct{ X, Y, W, H float64 }
)

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (r Rect) Min() Point { return Point{r.X, r.Y} }
func (r Rect) Max() Point { return Point{r.X + r.W, r.Y + r.H} }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Intersects reports whether two rectangles overlap. Touching edges count.
func (r Rect) Intersects(o Rect) bool {
	return r.X+r.W >= o.X && r.X <= o.X+o.W && r.Y+r.H >= o.Y && r.Y <= o.Y+o.H
}

// Normalize returns r with a non-negative width and height.
func (r Rect) Normalize() Rect {
	return RectFromPoints(r.Min(), r.Max())
}

// RectFromPoints builds the normalized rectangle spanned by two corners,
// whatever direction the user dragged in.
func RectFromPoints(a, b Point) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// ScreenToCanvas converts a pointer position in screen pixels into canvas
// space. container is the bounding rectangle of the scrollable element and
// scroll its current scroll offset. The result is not rounded; callers round
// when they persist.
func ScreenToCanvas(pointer Point, container Rect, scroll Point) Point {
	return pointer.Sub(container.Min()).Add(scroll)
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func CanvasToScreen(p Point, container Rect, scroll Point) Point {
	return p.Sub(scroll).Add(container.Min())
}

// ClampToCanvas clamps p into [0, width) x [0, height). Canvas positions are
// integral, so the open upper bound is width-1.
func ClampToCanvas(p Point, width, height float64) Point {
	return Point{
		X: clamp(p.X, 0, width-1),
		Y: clamp(p.Y, 0, height-1),
	}
}

// Round rounds a canvas point to the integer position that gets persisted.
func Round(p Point) (x, y int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
