// internal/catalog/sql.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

const listingColumns = `id, title, make, model, price, year, mileage, fuel_type, transmission,
	description, images, location, source, source_url, created_at, updated_at,
	color, doors, seats, power_hp, body_type, seller_type, features, search_key`

const listingValues = `:id, :title, :make, :model, :price, :year, :mileage, :fuel_type, :transmission,
	:description, :images, :location, :source, :source_url, :created_at, :updated_at,
	:color, :doors, :seats, :power_hp, :body_type, :seller_type, :features, :search_key`

// dialect holds what differs between SQL backends.
type dialect struct {
	name   string
	insert string
	schema []string
}

// row is the storage shape of a listing. Lists are JSON text columns.
type row struct {
	listing.Listing
	ImagesJSON   string `db:"images"`
	FeaturesJSON string `db:"features"`
	SearchKey    string `db:"search_key"`
}

func toRow(l listing.Listing) (row, error) {
	images, err := json.Marshal(nonNil(l.Images))
	if err != nil {
		return row{}, err
	}
	features, err := json.Marshal(nonNil(l.Features))
	if err != nil {
		return row{}, err
	}
	return row{Listing: l, ImagesJSON: string(images), FeaturesJSON: string(features), SearchKey: searchKey(&l)}, nil
}

func (r row) toListing() listing.Listing {
	l := r.Listing
	if r.ImagesJSON != "" {
		_ = json.Unmarshal([]byte(r.ImagesJSON), &l.Images)
	}
	if r.FeaturesJSON != "" {
		_ = json.Unmarshal([]byte(r.FeaturesJSON), &l.Features)
	}
	return l
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SQLStore implements Store over sqlx for every SQL dialect.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  utils.Logger
}

func newSQLStore(db *sqlx.DB, d dialect, logger utils.Logger) *SQLStore {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &SQLStore{db: db, dialect: d, logger: logger}
}

// Migrate creates the listings table and indexes when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s catalog: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Upsert inserts listings in one transaction. Conflicting source URLs are
// ignored by the database and not counted.
func (s *SQLStore) Upsert(ctx context.Context, listings []listing.Listing) (int, error) {
	prepared := prepare(listings)
	if len(prepared) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, s.dialect.insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range prepared {
		r, err := toRow(l)
		if err != nil {
			return 0, fmt.Errorf("failed to encode listing %s: %w", l.SourceURL, err)
		}
		res, err := stmt.ExecContext(ctx, r)
		if err != nil {
			return 0, fmt.Errorf("failed to insert listing %s: %w", l.SourceURL, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit listings: %w", err)
	}
	s.logger.Debugf("upserted %d listings, %d new", len(prepared), inserted)
	return inserted, nil
}

// Query returns matching listings, newest first.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]listing.Listing, error) {
	query, args := buildSelect(q)
	query = s.db.Rebind(query)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}

	out := make([]listing.Listing, len(rows))
	for i := range rows {
		out[i] = rows[i].toListing()
	}
	return out, nil
}

func buildSelect(q Query) (string, []interface{}) {
	var where []string
	var args []interface{}

	for _, tok := range q.tokens() {
		where = append(where, "search_key LIKE ?")
		args = append(args, "%"+tok+"%")
	}

	rangeCond := func(column string, min, max interface{}) {
		if min != nil {
			where = append(where, fmt.Sprintf("(%s IS NULL OR %s >= ?)", column, column))
			args = append(args, min)
		}
		if max != nil {
			where = append(where, fmt.Sprintf("(%s IS NULL OR %s <= ?)", column, column))
			args = append(args, max)
		}
	}
	f := q.Filters
	rangeCond("price", deref64(f.PriceMin), deref64(f.PriceMax))
	rangeCond("year", deref(f.YearMin), deref(f.YearMax))
	rangeCond("mileage", deref64(f.MileageMin), deref64(f.MileageMax))

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(listingColumns)
	b.WriteString(" FROM listings")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC LIMIT ?")
	args = append(args, q.limit())
	return b.String(), args
}

// deref helpers return untyped nil for unset bounds so rangeCond can skip them.
func deref64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func deref(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Count returns the number of stored listings.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM listings"); err != nil {
		return 0, fmt.Errorf("catalog count failed: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
