package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound    = errors.New("item not found")
	ErrInvalidItem = errors.New("invalid item")
)

// Kind is the closed set of card types that can be placed on a canvas.
type Kind string

const (
	KindNote     Kind = "note"
	KindTask     Kind = "task"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindScribble Kind = "scribble"
)

// Kinds lists every valid kind in palette order.
var Kinds = []Kind{KindNote, KindTask, KindImage, KindAudio, KindScribble}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Collection is the REST collection name used to create items of this kind.
func (k Kind) Collection() string {
	return string(k) + "s"
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, s)
	}
	return k, nil
}

// Fields is the kind-specific payload of an item. The canvas never looks
// inside it beyond what the card kind declares as editable.
type Fields map[string]any

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool returns the field as a bool, false when absent.
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

type (
	// Item is a card positioned on a user's canvas.
	Item struct {
		ID        string
		UserID    string
		Kind      Kind
		X         int
		Y         int
		Fields    Fields
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Patch is a partial update. Nil coordinates are left untouched.
	Patch struct {
		X      *int
		Y      *int
		Fields Fields
	}

	// ItemStore defines the persistence layer for canvas items.
	// All operations are scoped to a specific user.
	ItemStore interface {
		// List returns one page of a user's items ordered by creation.
		// Pages are 1-based; a page past the end is empty, not an error.
		List(ctx context.Context, userID string, page, pageSize int) ([]*Item, error)

		// Create assigns an ID and timestamps and stores the item.
		Create(ctx context.Context, item *Item) error

		// Get returns a single item, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Item, error)

		// Update applies a patch and returns the stored result.
		Update(ctx context.Context, userID, id string, patch Patch) (*Item, error)

		// Delete removes an item, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error

		// Search returns the user's items matching a keyword query.
		Search(ctx context.Context, userID, query string) ([]*Item, error)
	}
)

// reserved keys are carried by Item itself and never live in Fields.
var reserved = map[string]bool{
	"_id":        true,
	"type":       true,
	"x":          true,
	"y":          true,
	"user_id":    true,
	"created_at": true,
	"updated_at": true,
}

func IsReserved(key string) bool { return reserved[key] }

// Validate checks what every store requires before persisting an item.
func (it *Item) Validate() error {
	if it.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidItem)
	}
	if !it.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, it.Kind)
	}
	return nil
}

func (it Item) Clone() Item {
	it.Fields = it.Fields.Clone()
	return it
}

// Apply merges a patch into the item. Reserved keys in the patch fields are ignored.
func (it *Item) Apply(p Patch) {
	if p.X != nil {
		it.X = *p.X
	}
	if p.Y != nil {
		it.Y = *p.Y
	}
	if len(p.Fields) == 0 {
		return
	}
	if it.Fields == nil {
		it.Fields = Fields{}
	}
	for k, v := range p.Fields {
		if reserved[k] {
			continue
		}
		it.Fields[k] = v
	}
}

// MarshalJSON flattens the payload next to the identifying keys, the shape
// the canvas API has always used: {"_id": .., "type": .., "x": .., "y": .., "title": ..}.
func (it Item) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(it.Fields)+6)
	for k, v := range it.Fields {
		if !reserved[k] {
			m[k] = v
		}
	}
	m["_id"] = it.ID
	m["type"] = it.Kind
	m["x"] = it.X
	m["y"] = it.Y
	if !it.CreatedAt.IsZero() {
		m["created_at"] = it.CreatedAt
	}
	if !it.UpdatedAt.IsZero() {
		m["updated_at"] = it.UpdatedAt
	}
	return json.Marshal(m)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Item
	if v, ok := raw["_id"]; ok {
		if err := json.Unmarshal(v, &out.ID); err != nil {
			return fmt.Errorf("decoding _id: %w", err)
		}
	}
	if v, ok := raw["type"]; ok {
		var kind string
		if err := json.Unmarshal(v, &kind); err != nil {
			return fmt.Errorf("decoding type: %w", err)
		}
		out.Kind = Kind(kind)
	}
	for key, dst := range map[string]*int{"x": &out.X, "y": &out.Y} {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		*dst = int(math.Round(f))
	}
	for key, dst := range map[string]*time.Time{"created_at": &out.CreatedAt, "updated_at": &out.UpdatedAt} {
		if v, ok := raw[key]; ok && string(v) != "null" {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
		}
	}

	for k, v := range raw {
		if reserved[k] {
			continue
		}
		if out.Fields == nil {
			out.Fields = Fields{}
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decoding %s: %w", k, err)
		}
		out.Fields[k] = val
	}

	*it = out
	return nil
}
