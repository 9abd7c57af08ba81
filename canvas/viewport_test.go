package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTracker(client Rect, content Size) (*Tracker, *VirtualContainer) {
	c := NewVirtualContainer(client, content)
	return NewTracker(c), c
}

func TestNavigateToCentersViewport(t *testing.T) {
	tr, c := newTracker(Rect{W: 800, H: 600}, Size{W: 4000, H: 2000})

	got := tr.NavigateTo(500, 300)
	assert.Equal(t, Point{X: 100, Y: 0}, got)
	assert.Equal(t, Point{X: 100, Y: 0}, c.ScrollOffset())
	assert.Equal(t, Viewport{X: 100, Y: 0, W: 800, H: 600}, tr.Viewport())
}

func TestNavigateToClamps(t *testing.T) {
	tr, c := newTracker(Rect{W: 800, H: 600}, Size{W: 4000, H: 2000})

	tr.NavigateTo(100, 100)
	assert.Equal(t, Point{}, c.ScrollOffset())

	tr.NavigateTo(10000, 10000)
	assert.Equal(t, Point{X: 3200, Y: 1400}, c.ScrollOffset())
}

func TestHandleWheelScrollsSideways(t *testing.T) {
	tr, c := newTracker(Rect{W: 800, H: 600}, Size{W: 4000, H: 2000})
	tr.ScrollTo(Point{X: 100, Y: 50}, false)

	tr.HandleWheel(0, 120)
	assert.Equal(t, Point{X: 220, Y: 50}, c.ScrollOffset())

	tr.HandleWheel(-30, 0)
	assert.Equal(t, Point{X: 190, Y: 50}, c.ScrollOffset())

	tr.HandleWheel(0, -1000)
	assert.Equal(t, Point{X: 0, Y: 50}, c.ScrollOffset())
}

func TestScrollBy(t *testing.T) {
	tr, c := newTracker(Rect{W: 800, H: 600}, Size{W: 4000, H: 2000})

	tr.ScrollBy(Point{X: 40, Y: 30}, false)
	tr.ScrollBy(Point{X: 40, Y: 30}, true)
	assert.Equal(t, Point{X: 80, Y: 60}, c.ScrollOffset())
}

func TestHandleScrollNotifiesListeners(t *testing.T) {
	tr, c := newTracker(Rect{W: 800, H: 600}, Size{W: 4000, H: 2000})

	var got []Viewport
	unsubscribe := tr.OnChange(func(vp Viewport) { got = append(got, vp) })

	c.ScrollTo(Point{X: 500, Y: 100}, false)
	tr.HandleScroll()
	unsubscribe()
	tr.HandleScroll()

	assert.Equal(t, []Viewport{{X: 500, Y: 100, W: 800, H: 600}}, got)
}

func TestViewportFitsSmallContent(t *testing.T) {
	tr, _ := newTracker(Rect{W: 800, H: 600}, Size{W: 100, H: 100})

	assert.Equal(t, Viewport{W: 800, H: 600}, tr.Viewport())
	assert.Equal(t, Point{}, tr.ScrollTo(Point{X: 50, Y: 50}, false))
}
