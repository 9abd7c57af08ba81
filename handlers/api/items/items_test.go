package items

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"orbit/core"
	"orbit/handlers/auth"
	"orbit/stores/memory"
)

func setupRouter(t *testing.T) (*chi.Mux, core.ItemStore) {
	t.Helper()
	auth.Init("")
	store := memory.NewStore()
	r := chi.NewRouter()
	Routes(r, store)
	return r, store
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeItem(t *testing.T, rr *httptest.ResponseRecorder) core.Item {
	t.Helper()
	var it core.Item
	if err := json.Unmarshal(rr.Body.Bytes(), &it); err != nil {
		t.Fatalf("Failed to decode item %q: %v", rr.Body.String(), err)
	}
	return it
}

func decodeItems(t *testing.T, rr *httptest.ResponseRecorder) []core.Item {
	t.Helper()
	var items []core.Item
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("Failed to decode items %q: %v", rr.Body.String(), err)
	}
	return items
}

func TestCreate_ByCollection(t *testing.T) {
	r, _ := setupRouter(t)

	rr := do(t, r, http.MethodPost, "/notes/?user_id=u1", `{"x": 120, "y": 80, "title": "Note Mar 5, 2024", "content": ""}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	it := decodeItem(t, rr)
	if it.ID == "" || it.Kind != core.KindNote || it.X != 120 || it.Y != 80 {
		t.Errorf("Created item = %+v", it)
	}
	if it.Fields.String("title") != "Note Mar 5, 2024" {
		t.Errorf("Title = %q", it.Fields.String("title"))
	}
}

func TestCreate_Elements(t *testing.T) {
	r, _ := setupRouter(t)

	rr := do(t, r, http.MethodPost, "/elements/?user_id=u1", `{"x": 1, "y": 2}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Create without type: got %d, want 400", rr.Code)
	}

	rr = do(t, r, http.MethodPost, "/elements/?user_id=u1", `{"type": "task", "x": 1, "y": 2, "completed": false}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create task: got %d: %s", rr.Code, rr.Body.String())
	}
	if it := decodeItem(t, rr); it.Kind != core.KindTask {
		t.Errorf("Kind = %s, want task", it.Kind)
	}

	rr = do(t, r, http.MethodPost, "/notes/?user_id=u1", `{"type": "task", "x": 1, "y": 2}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Create with mismatched type: got %d, want 400", rr.Code)
	}
}

func TestCreate_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name    string
		body    string
		wantLoc string
	}{
		{"fractional x", `{"x": 1.5, "y": 2}`, "x"},
		{"missing y", `{"x": 1}`, "y"},
		{"string completed", `{"x": 1, "y": 2, "completed": "yes"}`, "completed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/tasks/?user_id=u1", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("Expected status 422, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp struct {
				Detail []fieldError `json:"detail"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode detail: %v", err)
			}
			if len(resp.Detail) == 0 || resp.Detail[0].Loc[1] != tt.wantLoc {
				t.Errorf("Detail = %+v, want loc %s", resp.Detail, tt.wantLoc)
			}
		})
	}

	rr := do(t, r, http.MethodPost, "/tasks/?user_id=u1", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Malformed body: got %d, want 400", rr.Code)
	}
}

func TestList_Pages(t *testing.T) {
	r, store := setupRouter(t)
	for i := range 12 {
		if err := store.Create(context.Background(), &core.Item{UserID: "u1", Kind: core.KindNote, X: i}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	first := decodeItems(t, do(t, r, http.MethodGet, "/elements/?user_id=u1", ""))
	if len(first) != DefaultPageSize {
		t.Errorf("Default page has %d items, want %d", len(first), DefaultPageSize)
	}
	second := decodeItems(t, do(t, r, http.MethodGet, "/elements/?user_id=u1&page=2&page_size=10", ""))
	if len(second) != 2 || second[0].X != 10 {
		t.Errorf("Second page = %v", second)
	}
	third := do(t, r, http.MethodGet, "/elements/?user_id=u1&page=3", "")
	if third.Body.String() != "[]\n" {
		t.Errorf("Exhausted page body = %q, want []", third.Body.String())
	}

	huge := do(t, r, http.MethodGet, "/elements/?user_id=u1&page=9223372036854775807&page_size=100", "")
	if huge.Code != http.StatusOK || huge.Body.String() != "[]\n" {
		t.Errorf("Huge page: got %d %q, want 200 []", huge.Code, huge.Body.String())
	}

	if rr := do(t, r, http.MethodGet, "/elements/?user_id=u1&page_size=0", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("page_size=0: got %d, want 400", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/elements/", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("Missing user_id: got %d, want 400", rr.Code)
	}
}

func TestUpdate(t *testing.T) {
	r, store := setupRouter(t)
	it := &core.Item{UserID: "u1", Kind: core.KindNote, X: 1, Y: 1, Fields: core.Fields{"title": "A", "content": "keep"}}
	if err := store.Create(context.Background(), it); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	url := fmt.Sprintf("/elements/%s?user_id=u1", it.ID)

	rr := do(t, r, http.MethodPut, url, `{"x": 300, "y": 40, "title": "B", "_id": "forged"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Update: got %d: %s", rr.Code, rr.Body.String())
	}
	got, err := store.Get(context.Background(), "u1", it.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.X != 300 || got.Y != 40 || got.Fields.String("title") != "B" || got.Fields.String("content") != "keep" {
		t.Errorf("Stored item = %+v", got)
	}

	if rr := do(t, r, http.MethodPut, url, `{"x": 10.25}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Fractional x: got %d, want 422", rr.Code)
	}
	if rr := do(t, r, http.MethodPut, url, `{"type": "task"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("Type change: got %d, want 400", rr.Code)
	}
	if rr := do(t, r, http.MethodPut, "/elements/missing?user_id=u1", `{"x": 1}`); rr.Code != http.StatusNotFound {
		t.Errorf("Missing element: got %d, want 404", rr.Code)
	}
	if rr := do(t, r, http.MethodPut, fmt.Sprintf("/elements/%s?user_id=u2", it.ID), `{"x": 1}`); rr.Code != http.StatusNotFound {
		t.Errorf("Other user's element: got %d, want 404", rr.Code)
	}
}

func TestDelete(t *testing.T) {
	r, store := setupRouter(t)
	it := &core.Item{UserID: "u1", Kind: core.KindImage}
	if err := store.Create(context.Background(), it); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	url := fmt.Sprintf("/elements/%s?user_id=u1", it.ID)

	if rr := do(t, r, http.MethodDelete, url, ""); rr.Code != http.StatusOK {
		t.Fatalf("Delete: got %d: %s", rr.Code, rr.Body.String())
	}
	rr := do(t, r, http.MethodDelete, url, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Second delete: got %d, want 404", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["detail"] != "Element not found" {
		t.Errorf("Error body = %q", rr.Body.String())
	}
}

func TestSearch(t *testing.T) {
	r, store := setupRouter(t)
	for _, f := range []core.Fields{
		{"title": "Weekly plan", "content": "call dentist"},
		{"title": "Dentist"},
		{"title": "Gym"},
	} {
		if err := store.Create(context.Background(), &core.Item{UserID: "u1", Kind: core.KindNote, Fields: f}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	found := decodeItems(t, do(t, r, http.MethodGet, "/search?user_id=u1&query=dentist", ""))
	if len(found) != 2 || found[0].Fields.String("title") != "Dentist" {
		t.Errorf("Search() = %v", found)
	}

	if empty := decodeItems(t, do(t, r, http.MethodGet, "/search?user_id=u1&query=%20", "")); len(empty) != 0 {
		t.Errorf("Blank query returned %v", empty)
	}
}
