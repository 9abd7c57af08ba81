// Package sqlstore implements core.ItemStore on database/sql. The sqlite and
// postgres stores differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"orbit/core"
)

// Dialect captures the differences between SQL databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
	// Schema creates the items table if it does not exist.
	Schema string
}

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const timeLayout = time.RFC3339Nano

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates the schema and returns a store on db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fmt.Errorf("creating %s schema: %w", dialect.Name, err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner, userID string) (*core.Item, error) {
	var it core.Item
	var kind, fields, created, updated string
	if err := row.Scan(&it.ID, &kind, &it.X, &it.Y, &fields, &created, &updated); err != nil {
		return nil, err
	}
	it.UserID = userID
	it.Kind = core.Kind(kind)
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &it.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields of %s: %w", it.ID, err)
		}
	}
	var err error
	if it.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("decoding created_at of %s: %w", it.ID, err)
	}
	if it.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("decoding updated_at of %s: %w", it.ID, err)
	}
	return &it, nil
}

func encodeFields(f core.Fields) (string, error) {
	clean := core.Fields{}
	for k, v := range f {
		if !core.IsReserved(k) {
			clean[k] = v
		}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	return string(data), nil
}

const selectColumns = "SELECT id, kind, x, y, fields, created_at, updated_at FROM items"

func (s *Store) queryItems(ctx context.Context, userID, query string, args ...any) ([]*core.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*core.Item{}
	for rows.Next() {
		it, err := scanItem(rows, userID)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) List(ctx context.Context, userID string, page, pageSize int) ([]*core.Item, error) {
	offset, ok := core.PageOffset(page, pageSize)
	if !ok {
		return []*core.Item{}, nil
	}
	items, err := s.queryItems(ctx, userID,
		selectColumns+" WHERE user_id = ? ORDER BY id LIMIT ? OFFSET ?",
		userID, pageSize, offset)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "page": page}).WithError(err).Error("Failed to list items")
		return nil, err
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, it *core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	fields, err := encodeFields(it.Fields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	it.ID = ulid.Make().String()
	it.CreatedAt, it.UpdatedAt = now, now
	log := logrus.WithFields(logrus.Fields{"user_id": it.UserID, "item_id": it.ID, "kind": it.Kind})

	_, err = s.db.ExecContext(ctx,
		s.q("INSERT INTO items (id, user_id, kind, x, y, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		it.ID, it.UserID, string(it.Kind), it.X, it.Y, fields, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		log.WithError(err).Error("Failed to create item")
		return err
	}
	log.Info("Item created successfully")
	return nil
}

func (s *Store) get(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, userID, id string) (*core.Item, error) {
	row := q.QueryRowContext(ctx, s.q(selectColumns+" WHERE user_id = ? AND id = ?"), userID, id)
	it, err := scanItem(row, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return it, err
}

func (s *Store) Get(ctx context.Context, userID, id string) (*core.Item, error) {
	return s.get(ctx, s.db, userID, id)
}

func (s *Store) Update(ctx context.Context, userID, id string, patch core.Patch) (*core.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	it, err := s.get(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	it.Apply(patch)
	it.UpdatedAt = time.Now().UTC()
	fields, err := encodeFields(it.Fields)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		s.q("UPDATE items SET x = ?, y = ?, fields = ?, updated_at = ? WHERE user_id = ? AND id = ?"),
		it.X, it.Y, fields, it.UpdatedAt.Format(timeLayout), userID, id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id}).WithError(err).Error("Failed to update item")
		return nil, err
	}
	return it, tx.Commit()
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM items WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id}).Info("Item deleted successfully")
	return nil
}

// Search narrows candidates in SQL and applies the shared keyword rules to
// order them.
func (s *Store) Search(ctx context.Context, userID, query string) ([]*core.Item, error) {
	q := core.NormalizeQuery(query)
	if q == "" {
		return []*core.Item{}, nil
	}
	var (
		candidates []*core.Item
		err        error
	)
	if likeSafe(q) {
		candidates, err = s.queryItems(ctx, userID,
			selectColumns+" WHERE user_id = ? AND LOWER(fields) LIKE ? ORDER BY id",
			userID, "%"+q+"%")
	} else {
		candidates, err = s.queryItems(ctx, userID, selectColumns+" WHERE user_id = ? ORDER BY id", userID)
	}
	if err != nil {
		return nil, err
	}
	return core.FilterMatches(candidates, q), nil
}

// likeSafe reports whether q appears verbatim in the JSON encoding of a
// string containing it, and is lower-cased the same way by every database.
func likeSafe(q string) bool {
	for _, r := range q {
		if r < 0x20 || r > 0x7e || strings.ContainsRune(`"\<>&`, r) {
			return false
		}
	}
	return true
}
