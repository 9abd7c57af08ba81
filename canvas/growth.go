package canvas

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultEdgeThreshold is how close, in canvas units, an item may come
	// to the right edge before the canvas widens.
	DefaultEdgeThreshold = 100
	DefaultCanvasHeight  = 2000
)

// WidthStore persists the canvas width reached by each user so that a
// returning session starts at least that wide.
type WidthStore interface {
	LoadWidth(userID string) (width float64, ok bool, err error)
	SaveWidth(userID string, width float64) error
}

type GrowthOptions struct {
	// ScreenWidth is the width of the window; the canvas grows by one
	// screen width at a time.
	ScreenWidth float64
	// InitialWidth is the width of a fresh canvas. Defaults to two screens.
	InitialWidth float64
	Height       float64
	Threshold    float64
}

// GrowthController owns the canvas width. The width only ever grows.
type GrowthController struct {
	mu      sync.Mutex
	tracker *Tracker
	store   WidthStore
	opts    GrowthOptions
	userID  string
	width   float64
}

func NewGrowthController(tracker *Tracker, store WidthStore, opts GrowthOptions) *GrowthController {
	if opts.ScreenWidth <= 0 {
		opts.ScreenWidth = tracker.Container().ClientSize().W
	}
	if opts.InitialWidth <= 0 {
		opts.InitialWidth = opts.ScreenWidth * 2
	}
	if opts.Height <= 0 {
		opts.Height = DefaultCanvasHeight
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultEdgeThreshold
	}
	g := &GrowthController{tracker: tracker, store: store, opts: opts, width: opts.InitialWidth}
	g.apply()
	return g
}

// Restore starts a session for userID. The width becomes the largest of the
// stored width, the initial width and, when the user is unchanged, the
// current width.
func (g *GrowthController) Restore(userID string) float64 {
	g.mu.Lock()
	width := g.opts.InitialWidth
	if userID == g.userID {
		width = math.Max(width, g.width)
	}
	g.userID = userID
	g.mu.Unlock()

	if g.store != nil && userID != "" {
		stored, ok, err := g.store.LoadWidth(userID)
		switch {
		case err != nil:
			logrus.WithFields(logrus.Fields{"user_id": userID, "error": err}).Warn("Failed to load canvas width")
		case ok:
			width = math.Max(width, stored)
		}
	}

	g.mu.Lock()
	g.width = width
	g.mu.Unlock()
	g.apply()
	return width
}

func (g *GrowthController) Width() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.width
}

func (g *GrowthController) Height() float64 { return g.opts.Height }

func (g *GrowthController) Size() Size {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Size{W: g.width, H: g.opts.Height}
}

func (g *GrowthController) SetScreenWidth(w float64) {
	if w <= 0 {
		return
	}
	g.mu.Lock()
	g.opts.ScreenWidth = w
	g.mu.Unlock()
}

// NeedsGrowth reports whether an item at x is within the edge threshold.
func (g *GrowthController) NeedsGrowth(x float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.needsGrowthLocked(x)
}

func (g *GrowthController) needsGrowthLocked(x float64) bool {
	return x+g.opts.Threshold > g.width-g.opts.Threshold
}

// CheckEdge widens the canvas by one screen width when an item dropped at x
// is near the right edge, then centers the scroll on the item's card so it does
// not appear to jump. It reports whether the canvas grew.
func (g *GrowthController) CheckEdge(x float64) bool {
	g.mu.Lock()
	if !g.needsGrowthLocked(x) {
		g.mu.Unlock()
		return false
	}
	g.width += g.opts.ScreenWidth
	width, userID := g.width, g.userID
	g.mu.Unlock()

	g.apply()
	client := g.tracker.Container().ClientSize()
	scroll := g.tracker.ScrollOffset()
	g.tracker.ScrollTo(Point{X: x + DefaultItemSize/2 - client.W/2, Y: scroll.Y}, false)

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "width": width})
	log.Debug("Canvas widened")
	if g.store != nil && userID != "" {
		if err := g.store.SaveWidth(userID, width); err != nil {
			log.WithError(err).Warn("Failed to persist canvas width")
		}
	}
	return true
}

func (g *GrowthController) apply() {
	g.tracker.Container().SetContentSize(g.Size())
	g.tracker.HandleScroll()
}
