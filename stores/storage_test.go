package stores

import (
	"context"
	"path/filepath"
	"testing"

	"orbit/config"
	"orbit/core"
)

func TestGetStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Storage
	}{
		{"memory", config.Storage{Type: config.StorageMemory}},
		{"filesystem", config.Storage{Type: config.StorageFilesystem, LocalPath: filepath.Join(dir, "fs")}},
		{"sqlite", config.Storage{Type: config.StorageSQLite, DataSourceName: filepath.Join(dir, "orbit.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := GetStore(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("GetStore() failed: %v", err)
			}

			it := &core.Item{UserID: "u1", Kind: core.KindNote, Fields: core.Fields{"title": tt.name}}
			if err := store.Create(ctx, it); err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			items, err := store.List(ctx, "u1", 1, 10)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(items) != 1 || items[0].ID != it.ID {
				t.Errorf("List() = %v", items)
			}
		})
	}
}

func TestGetStore_Unknown(t *testing.T) {
	if _, err := GetStore(context.Background(), config.Storage{Type: "tape"}); err == nil {
		t.Error("GetStore() accepted an unknown type")
	}
}
