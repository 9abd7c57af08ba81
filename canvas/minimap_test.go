package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/core"
)

func TestMinimapProjectsItems(t *testing.T) {
	tr, _ := newTracker(Rect{W: 1000, H: 800}, Size{W: 10000, H: 2000})
	m := NewMinimap(tr, MinimapOptions{})

	frame := m.Project([]core.Item{
		item("a", core.KindNote, 400, 240, nil),
		item("b", core.KindTask, 10000, 0, nil),
	})

	require.Len(t, frame.Markers, 2)
	assert.Equal(t, MinimapMarker{ID: "a", Kind: core.KindNote, X: 20, Y: 12, Visible: true}, frame.Markers[0])
	assert.False(t, frame.Markers[1].Visible)
	assert.Equal(t, 0.0, frame.Shift)
	assert.Equal(t, Rect{W: 50, H: 40}, frame.Viewport)
}

func TestMinimapShiftKeepsViewportVisible(t *testing.T) {
	tr, _ := newTracker(Rect{W: 1000, H: 800}, Size{W: 10000, H: 2000})
	m := NewMinimap(tr, MinimapOptions{})
	tr.ScrollTo(Point{X: 4000}, false)

	frame := m.Project([]core.Item{item("a", core.KindNote, 4500, 0, nil)})

	assert.Equal(t, 50.0, frame.Shift)
	assert.Equal(t, Rect{X: 150, Y: 0, W: 50, H: 40}, frame.Viewport)
	assert.Equal(t, 175.0, frame.Markers[0].X)
	assert.True(t, frame.Markers[0].Visible)
}

func TestMinimapViewportIsClamped(t *testing.T) {
	tr, _ := newTracker(Rect{W: 1000, H: 2400}, Size{W: 10000, H: 3000})
	m := NewMinimap(tr, MinimapOptions{})
	tr.ScrollTo(Point{Y: 600}, false)

	vp := m.ProjectViewport(tr.Viewport(), 0)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 50, H: 100}, vp)
}

func TestMinimapNavigate(t *testing.T) {
	tr, c := newTracker(Rect{W: 1000, H: 800}, Size{W: 10000, H: 2000})
	m := NewMinimap(tr, MinimapOptions{})

	target := m.Navigate(100, 50)
	assert.Equal(t, Point{X: 2000, Y: 1000}, target)
	assert.Equal(t, Point{X: 1500, Y: 600}, c.ScrollOffset())
}

func TestMinimapProjectionRoundTrip(t *testing.T) {
	tr, _ := newTracker(Rect{W: 1000, H: 800}, Size{W: 10000, H: 2000})
	m := NewMinimap(tr, MinimapOptions{Width: 300, Height: 150, ScaleX: 10, ScaleY: 10})

	p := Point{X: 1230, Y: 470}
	assert.Equal(t, p, m.Unproject(m.ProjectPoint(p, 7), 7))
	assert.Equal(t, MinimapOptions{Width: 300, Height: 150, ScaleX: 10, ScaleY: 10}, m.Options())
}
