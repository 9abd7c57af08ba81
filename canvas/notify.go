package canvas

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"orbit/core"
)

// Persistence is the storage collaborator the engine reads and writes items
// through. Every call may block on the network.
type Persistence interface {
	// ListItems returns one page of items; an empty page means no more.
	ListItems(ctx context.Context, userID string, page, pageSize int) ([]core.Item, error)
	// CreateItem stores a new item and returns it with its assigned ID.
	CreateItem(ctx context.Context, userID string, draft core.Item) (core.Item, error)
	// UpdateItem applies a partial update. Coordinates must be integers.
	UpdateItem(ctx context.Context, id string, fields core.Fields, userID string) error
	DeleteItem(ctx context.Context, id, userID string) error
}

// Searcher is implemented by collaborators that can search on the server.
type Searcher interface {
	SearchItems(ctx context.Context, userID, query string) ([]core.Item, error)
}

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user-visible message. Standing notifications stay up
// until replaced, e.g. while offline.
type Notification struct {
	Level    Level
	Message  string
	Standing bool
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the logger. It is the default when no
// UI is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	entry := logrus.WithFields(logrus.Fields{"level_ui": n.Level.String(), "standing": n.Standing})
	switch n.Level {
	case LevelError:
		entry.Error(n.Message)
	case LevelWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// detailer is implemented by collaborator errors that carry a message meant
// for the user.
type detailer interface {
	APIDetail() string
}

// userMessage prefers the collaborator's detail over a generic fallback.
func userMessage(err error, fallback string) string {
	var d detailer
	if errors.As(err, &d) && d.APIDetail() != "" {
		return d.APIDetail()
	}
	return fallback
}
