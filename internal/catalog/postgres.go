// internal/catalog/postgres.go
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/valpere/AutoScrapexter/internal/utils"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25

	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5

	// DefaultConnMaxLifetime is the default maximum lifetime of a connection
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout is the default timeout for pinging the database
	DefaultPingTimeout = 5 * time.Second
)

var postgresDialect = dialect{
	name:   DriverPostgres,
	insert: `INSERT INTO listings (` + listingColumns + `) VALUES (` + listingValues + `) ON CONFLICT (source_url) DO NOTHING`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			make TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			price BIGINT,
			year INTEGER,
			mileage BIGINT,
			fuel_type TEXT NOT NULL DEFAULT '',
			transmission TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			images TEXT NOT NULL DEFAULT '[]',
			location TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			source_url TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			doors INTEGER,
			seats INTEGER,
			power_hp INTEGER,
			body_type TEXT NOT NULL DEFAULT '',
			seller_type TEXT NOT NULL DEFAULT '',
			features TEXT NOT NULL DEFAULT '[]',
			search_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS listings_created_at_idx ON listings (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS listings_price_idx ON listings (price)`,
	},
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sqlx.DB, logger utils.Logger) *SQLStore {
	return newSQLStore(db, postgresDialect, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger utils.Logger) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres catalog requires a dsn")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := ping(ctx, db); err != nil {
		return nil, err
	}
	return NewPostgresStore(db, logger), nil
}

func ping(ctx context.Context, db *sqlx.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
