package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/oklog/ulid/v2"

	"orbit/core"
)

// Runs against a live database only when ORBIT_TEST_POSTGRES_DSN is set.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("ORBIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORBIT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	defer store.Close()

	userID := "test-" + ulid.Make().String()
	it := &core.Item{UserID: userID, Kind: core.KindNote, X: 3, Y: 4, Fields: core.Fields{"title": "pg"}}
	if err := store.Create(ctx, it); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer store.Delete(ctx, userID, it.ID)

	items, err := store.List(ctx, userID, 1, 10)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != it.ID || items[0].X != 3 {
		t.Errorf("List() = %v", items)
	}

	x := 9
	if _, err := store.Update(ctx, userID, it.ID, core.Patch{X: &x}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if err := store.Delete(ctx, userID, it.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, userID, it.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after delete: got %v, want ErrNotFound", err)
	}
}
