package canvas

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"orbit/core"
)

// cardSpec describes what differs between card kinds. Everything else
// (placement, deletion, title handling) is shared.
type cardSpec struct {
	label    string
	editable []string
	defaults func(now time.Time) core.Fields
}

const dateLayout = "2006-01-02"

var cards = map[core.Kind]cardSpec{
	core.KindNote: {
		label:    "Note",
		editable: []string{"title", "content"},
		defaults: func(now time.Time) core.Fields {
			return core.Fields{"title": datedTitle("Note", now), "content": ""}
		},
	},
	core.KindTask: {
		label: "Task",
		editable: []string{
			"title", "due_date", "due_time", "priority", "repeat",
			"completed", "last_reset", "is_edited",
		},
		defaults: func(now time.Time) core.Fields {
			return core.Fields{
				"title":      "",
				"due_date":   "",
				"due_time":   "",
				"priority":   "low",
				"repeat":     "no",
				"completed":  false,
				"last_reset": now.Format(dateLayout),
				"is_edited":  false,
			}
		},
	},
	core.KindImage: {
		label:    "Image",
		editable: []string{"title", "image_data"},
		defaults: func(now time.Time) core.Fields {
			return core.Fields{"title": datedTitle("Image", now), "image_data": nil}
		},
	},
	core.KindAudio: {
		label:    "Audio",
		editable: []string{"title", "audio_data", "transcription"},
		defaults: func(now time.Time) core.Fields {
			return core.Fields{"title": datedTitle("Audio", now), "audio_data": nil}
		},
	},
	core.KindScribble: {
		label:    "Scribble",
		editable: []string{"title", "scribbleData"},
		defaults: func(now time.Time) core.Fields {
			return core.Fields{"title": datedTitle("Scribble", now), "scribbleData": nil}
		},
	},
}

func datedTitle(label string, now time.Time) string {
	return label + " " + now.Format("Jan 2, 2006")
}

// ClassifyPalette maps a dragged palette token such as "Text Note" or
// "Drawing" to the kind of card it creates.
func ClassifyPalette(token string) (core.Kind, error) {
	t := strings.ToLower(token)
	switch {
	case strings.Contains(t, "note"):
		return core.KindNote, nil
	case strings.Contains(t, "task"):
		return core.KindTask, nil
	case strings.Contains(t, "image"):
		return core.KindImage, nil
	case strings.Contains(t, "audio"):
		return core.KindAudio, nil
	case strings.Contains(t, "scribble"), strings.Contains(t, "drawing"):
		return core.KindScribble, nil
	}
	return "", fmt.Errorf("%w: palette entry %q", core.ErrInvalidItem, token)
}

// DefaultFields returns the payload a new card of kind starts with.
func DefaultFields(kind core.Kind, now time.Time) core.Fields {
	spec, ok := cards[kind]
	if !ok {
		return core.Fields{}
	}
	return spec.defaults(now)
}

// EditableFields lists the payload fields an editor may change for kind.
func EditableFields(kind core.Kind) []string {
	return append([]string(nil), cards[kind].editable...)
}

// ChangedFields keeps the editable fields of edit whose value differs from
// the item's current payload. An empty result means there is nothing to send.
func ChangedFields(it core.Item, edit core.Fields) core.Fields {
	changed := core.Fields{}
	for _, key := range cards[it.Kind].editable {
		v, ok := edit[key]
		if !ok {
			continue
		}
		if key == "title" {
			v = normalizeTitle(it.Kind, v)
		}
		if cur, exists := it.Fields[key]; exists && reflect.DeepEqual(cur, v) {
			continue
		}
		changed[key] = v
	}
	return changed
}

// normalizeTitle replaces a blank title with "Untitled <Kind>". Tasks may
// keep an empty title; their card shows a placeholder instead.
func normalizeTitle(kind core.Kind, v any) any {
	s, ok := v.(string)
	if !ok || kind == core.KindTask || strings.TrimSpace(s) != "" {
		return v
	}
	return "Untitled " + cards[kind].label
}

// NeedsDailyReset reports whether a repeating task completed on an earlier
// day should be unchecked today.
func NeedsDailyReset(it core.Item, today time.Time) bool {
	if it.Kind != core.KindTask || it.Fields.String("repeat") != "yes" {
		return false
	}
	return it.Fields.Bool("completed") && it.Fields.String("last_reset") != today.Format(dateLayout)
}

// UpcomingTasks returns up to n incomplete tasks in collection order.
func UpcomingTasks(items []core.Item, n int) []core.Item {
	out := make([]core.Item, 0, n)
	for _, it := range items {
		if len(out) == n {
			break
		}
		if it.Kind == core.KindTask && !it.Fields.Bool("completed") {
			out = append(out, it)
		}
	}
	return out
}
