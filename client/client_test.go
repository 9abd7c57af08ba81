package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"orbit/core"
	"orbit/handlers/api/items"
	"orbit/handlers/auth"
	"orbit/stores/memory"
)

func setupServer(t *testing.T, secret string) (*httptest.Server, core.ItemStore) {
	t.Helper()
	auth.Init(secret)
	t.Cleanup(func() { auth.Init("") })

	store := memory.NewStore()
	r := chi.NewRouter()
	items.Routes(r, store)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRoundTrip(t *testing.T) {
	srv, store := setupServer(t, "")
	c := New(srv.URL+"/", "")
	ctx := context.Background()

	created, err := c.CreateItem(ctx, "u1", core.Item{Kind: core.KindTask, X: 40, Y: 60, Fields: core.Fields{"title": "Renew passport", "completed": false}})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	if created.ID == "" || created.Kind != core.KindTask || created.X != 40 || created.UserID != "u1" {
		t.Fatalf("CreateItem() = %+v", created)
	}

	if err := c.UpdateItem(ctx, created.ID, core.Fields{"x": 10.6, "y": -3.4, "completed": true}, "u1"); err != nil {
		t.Fatalf("UpdateItem() failed: %v", err)
	}
	stored, err := store.Get(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if stored.X != 11 || stored.Y != -3 || !stored.Fields.Bool("completed") {
		t.Errorf("Stored item = %+v", stored)
	}

	list, err := c.ListItems(ctx, "u1", 1, 10)
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID || list[0].UserID != "u1" {
		t.Errorf("ListItems() = %+v", list)
	}
	empty, err := c.ListItems(ctx, "u1", 2, 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListItems(page 2) = %v, %v; want empty", empty, err)
	}

	found, err := c.SearchItems(ctx, "u1", "passport")
	if err != nil || len(found) != 1 {
		t.Errorf("SearchItems() = %v, %v", found, err)
	}

	if err := c.DeleteItem(ctx, created.ID, "u1"); err != nil {
		t.Fatalf("DeleteItem() failed: %v", err)
	}
}

func TestAPIError_Detail(t *testing.T) {
	srv, _ := setupServer(t, "")
	c := New(srv.URL, "")
	ctx := context.Background()

	err := c.DeleteItem(ctx, "missing", "u1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("DeleteItem() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.APIDetail() != "Element not found" {
		t.Errorf("APIError = %+v", apiErr)
	}

	// Validation failures carry a list of messages.
	err = c.UpdateItem(ctx, "any", core.Fields{"completed": "maybe"}, "u1")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity || apiErr.Detail == "" {
		t.Errorf("UpdateItem() error = %v, want 422 with detail", err)
	}
}

func TestBearerToken(t *testing.T) {
	srv, store := setupServer(t, "secret")
	ctx := context.Background()
	if err := store.Create(ctx, &core.Item{UserID: "u9", Kind: core.KindNote}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	token, err := auth.CreateJWT("u9", "", time.Hour)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}
	list, err := New(srv.URL, token).ListItems(ctx, "u9", 1, 10)
	if err != nil || len(list) != 1 {
		t.Errorf("ListItems() with token = %v, %v", list, err)
	}

	_, err = New(srv.URL, "").ListItems(ctx, "u9", 1, 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("ListItems() without token = %v, want 401", err)
	}
}

func TestMalformedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/search") {
			w.Write([]byte("<html>"))
			return
		}
		w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "")

	if _, err := c.ListItems(context.Background(), "u1", 1, 10); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ListItems() = %v, want ErrMalformedResponse", err)
	}
	if _, err := c.SearchItems(context.Background(), "u1", "x"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("SearchItems() = %v, want ErrMalformedResponse", err)
	}
}

func TestCreateItem_UnknownKind(t *testing.T) {
	c := New("http://127.0.0.1:0", "")
	if _, err := c.CreateItem(context.Background(), "u1", core.Item{Kind: "video"}); !errors.Is(err, core.ErrInvalidItem) {
		t.Errorf("CreateItem() = %v, want ErrInvalidItem", err)
	}
}
