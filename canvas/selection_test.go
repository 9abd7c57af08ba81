package canvas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/core"
)

func marquee(t *testing.T, s *Selection, from, to Point) []string {
	t.Helper()
	require.NoError(t, s.Begin(from))
	got, err := s.Update(to)
	require.NoError(t, err)
	s.End()
	return got
}

func TestToggleModeOnlyOnBackground(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore())
	s := cv.Selection()

	assert.False(t, s.ToggleMode(TargetItem))
	assert.False(t, s.ToggleMode(TargetOverlay))
	assert.True(t, s.ToggleMode(TargetBackground))
	assert.True(t, s.ToggleMode(TargetItem))
	assert.False(t, s.ToggleMode(TargetBackground))
}

func TestMarqueeRequiresSelectionMode(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore())
	s := cv.Selection()

	assert.ErrorIs(t, s.Begin(Point{}), ErrNotSelecting)
	_, err := s.Update(Point{X: 10, Y: 10})
	assert.ErrorIs(t, err, ErrNotSelecting)
	_, ok := s.Marquee()
	assert.False(t, ok)
}

func TestMarqueeIntersection(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore(), item("a", core.KindNote, 100, 100, nil))
	s := cv.Selection()
	s.ToggleMode(TargetBackground)

	assert.Equal(t, []string{"a"}, marquee(t, s, Point{X: 0, Y: 0}, Point{X: 150, Y: 150}))
	assert.True(t, s.IsSelected("a"))

	assert.Empty(t, marquee(t, s, Point{X: 400, Y: 400}, Point{X: 500, Y: 500}))
	assert.False(t, s.IsSelected("a"))
}

func TestMarqueeIsNormalizedAndScrolled(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore(),
		item("near", core.KindNote, 100, 100, nil),
		item("far", core.KindNote, 1100, 100, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	cv.Tracker().ScrollTo(Point{X: 1000}, false)

	require.NoError(t, s.Begin(Point{X: 150, Y: 150}))
	got, err := s.Update(Point{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"far"}, got)

	r, ok := s.Marquee()
	require.True(t, ok)
	assert.Equal(t, Rect{W: 150, H: 150}, r)
	s.End()
	_, ok = s.Marquee()
	assert.False(t, ok)
	assert.Equal(t, []string{"far"}, s.Selected())
}

func TestGroupDragAppliesOneDelta(t *testing.T) {
	store := newFakeStore()
	cv, _, _ := newTestCanvas(t, store,
		item("A", core.KindNote, 10, 10, nil),
		item("B", core.KindTask, 50, 50, nil),
		item("C", core.KindNote, 900, 900, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	require.Equal(t, []string{"A", "B"}, marquee(t, s, Point{}, Point{X: 60, Y: 60}))

	cv.DragStart(Point{X: 10, Y: 10}, Rect{X: 10, Y: 10, W: 200, H: 200}, ItemSource("A"))
	moved, err := cv.Drop(context.Background(), Point{X: 15, Y: 15})
	require.NoError(t, err)
	require.Len(t, moved, 2)

	a, _ := cv.Collection().Get("A")
	b, _ := cv.Collection().Get("B")
	c, _ := cv.Collection().Get("C")
	assert.Equal(t, [2]int{15, 15}, [2]int{a.X, a.Y})
	assert.Equal(t, [2]int{55, 55}, [2]int{b.X, b.Y})
	assert.Equal(t, [2]int{900, 900}, [2]int{c.X, c.Y})

	ups := store.recordedUpdates()
	require.Len(t, ups, 2)
	byID := map[string]core.Fields{}
	for _, u := range ups {
		byID[u.id] = u.fields
	}
	assert.Equal(t, core.Fields{"x": 15, "y": 15}, byID["A"])
	assert.Equal(t, core.Fields{"x": 55, "y": 55}, byID["B"])

	assert.False(t, s.Active(), "selection mode ends after a group drag")
}

func TestGroupDragKeepsEveryItemOnCanvas(t *testing.T) {
	store := newFakeStore()
	cv, _, _ := newTestCanvas(t, store,
		item("A", core.KindNote, 500, 500, nil),
		item("B", core.KindTask, 10, 10, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	require.Equal(t, []string{"A", "B"}, marquee(t, s, Point{}, Point{X: 510, Y: 510}))

	cv.DragStart(Point{X: 500, Y: 500}, Rect{X: 500, Y: 500, W: 200, H: 200}, ItemSource("A"))
	_, err := cv.Drop(context.Background(), Point{X: 0, Y: 0})
	require.NoError(t, err)

	a, _ := cv.Collection().Get("A")
	b, _ := cv.Collection().Get("B")
	assert.Equal(t, [2]int{490, 490}, [2]int{a.X, a.Y})
	assert.Equal(t, [2]int{0, 0}, [2]int{b.X, b.Y})
	for _, u := range store.recordedUpdates() {
		assert.GreaterOrEqual(t, u.fields["x"], 0)
		assert.GreaterOrEqual(t, u.fields["y"], 0)
	}
}

func TestGroupDragWidensForRightmostItem(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore(),
		item("A", core.KindNote, 1700, 100, nil),
		item("B", core.KindNote, 1850, 100, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	cv.Tracker().ScrollTo(Point{X: 1000}, false)
	require.Equal(t, []string{"A", "B"}, marquee(t, s, Point{X: 600}, Point{X: 900, Y: 150}))

	_, err := s.GroupDrag(context.Background(), "A", 1800, 100)
	require.NoError(t, err)

	b, _ := cv.Collection().Get("B")
	assert.Equal(t, 1950, b.X)
	assert.Equal(t, 3000.0, cv.Growth().Width())
	assert.Less(t, float64(b.X), cv.Growth().Width())
}

func TestGroupDragRollsBackEverything(t *testing.T) {
	store := newFakeStore()
	store.updateFail["B"] = errors.New("conflict")
	cv, _, rec := newTestCanvas(t, store,
		item("A", core.KindNote, 10, 10, nil),
		item("B", core.KindTask, 50, 50, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	marquee(t, s, Point{}, Point{X: 60, Y: 60})

	_, err := s.GroupDrag(context.Background(), "A", 110, 210)
	require.Error(t, err)

	a, _ := cv.Collection().Get("A")
	b, _ := cv.Collection().Get("B")
	assert.Equal(t, [2]int{10, 10}, [2]int{a.X, a.Y})
	assert.Equal(t, [2]int{50, 50}, [2]int{b.X, b.Y})
	assert.True(t, s.Active(), "selection is kept so the drag can be retried")
	assert.Equal(t, LevelError, rec.last().Level)
}

func TestGroupDragRejectsUnselectedAnchor(t *testing.T) {
	cv, _, _ := newTestCanvas(t, newFakeStore(),
		item("A", core.KindNote, 10, 10, nil),
		item("Z", core.KindNote, 1500, 1500, nil),
	)
	s := cv.Selection()

	_, err := s.GroupDrag(context.Background(), "A", 0, 0)
	assert.ErrorIs(t, err, ErrNotSelecting)

	s.ToggleMode(TargetBackground)
	marquee(t, s, Point{}, Point{X: 60, Y: 60})
	_, err = s.GroupDrag(context.Background(), "Z", 0, 0)
	assert.ErrorIs(t, err, ErrNotSelected)
}

func TestUnselectedDropMovesSingleItem(t *testing.T) {
	store := newFakeStore()
	cv, _, _ := newTestCanvas(t, store,
		item("A", core.KindNote, 10, 10, nil),
		item("Z", core.KindNote, 1500, 1500, nil),
	)
	s := cv.Selection()
	s.ToggleMode(TargetBackground)
	marquee(t, s, Point{}, Point{X: 60, Y: 60})

	cv.DragStart(Point{}, Rect{}, ItemSource("Z"))
	moved, err := cv.Drop(context.Background(), Point{X: 700, Y: 700})
	require.NoError(t, err)
	require.Len(t, moved, 1)

	a, _ := cv.Collection().Get("A")
	assert.Equal(t, 10, a.X)
	assert.True(t, s.Active())
}
