package sqlstore

import "testing"

func TestRebind(t *testing.T) {
	query := "SELECT id FROM items WHERE user_id = ? AND id = ?"

	if got := (Dialect{}).Rebind(query); got != query {
		t.Errorf("Rebind() without numbering = %q", got)
	}
	want := "SELECT id FROM items WHERE user_id = $1 AND id = $2"
	if got := (Dialect{Numbered: true}).Rebind(query); got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestLikeSafe(t *testing.T) {
	tests := map[string]bool{
		"fence":       true,
		"50% off":     true,
		"milk & eggs": false,
		`say "hi"`:    false,
		"café":        false,
	}
	for q, want := range tests {
		if got := likeSafe(q); got != want {
			t.Errorf("likeSafe(%q) = %v, want %v", q, got, want)
		}
	}
}
