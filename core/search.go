package core

import (
	"math"
	"sort"
	"strings"
)

// searchable are the payload fields a keyword query is matched against.
var searchable = []string{"title", "content", "transcription"}

// NormalizeQuery trims and lower-cases a search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Matches reports whether a normalized query occurs in the item's title,
// content or transcription.
func (it *Item) Matches(query string) bool {
	if query == "" {
		return false
	}
	for _, key := range searchable {
		if strings.Contains(strings.ToLower(it.Fields.String(key)), query) {
			return true
		}
	}
	return false
}

func (it *Item) titleMatches(query string) bool {
	return strings.Contains(strings.ToLower(it.Fields.String("title")), query)
}

// FilterMatches keeps the items matching query and orders title matches
// ahead of content matches, otherwise preserving input order.
func FilterMatches(items []*Item, query string) []*Item {
	query = NormalizeQuery(query)
	out := make([]*Item, 0)
	for _, it := range items {
		if it != nil && it.Kind != "" && it.Matches(query) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].titleMatches(query) && !out[j].titleMatches(query)
	})
	return out
}

// SortByID orders items by ID. IDs are ULIDs, so this is creation order.
func SortByID(items []*Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// PageBounds converts a 1-based page into slice bounds over n elements.
// Pages past the end yield (n, n), however large page is.
func PageBounds(n, page, pageSize int) (start, end int) {
	if page < 1 || pageSize < 1 || n < 1 {
		return 0, 0
	}
	if page-1 > (n-1)/pageSize {
		return n, n
	}
	start = (page - 1) * pageSize
	end = start + min(pageSize, n-start)
	return start, end
}

// PageOffset returns the number of elements before page, and false when
// that count does not fit in an int.
func PageOffset(page, pageSize int) (int, bool) {
	if page < 1 || pageSize < 1 || page-1 > math.MaxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}
