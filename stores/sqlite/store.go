package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"orbit/stores/sqlstore"
)

var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		fields TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);`,
}

// NewStore opens (or creates) a SQLite database file and prepares the items table.
func NewStore(ctx context.Context, dataSourceName string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	store, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	logrus.WithField("dataSourceName", dataSourceName).Debug("SQLite store ready")
	return store, nil
}
