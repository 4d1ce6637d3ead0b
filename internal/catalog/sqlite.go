// internal/catalog/sqlite.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/valpere/AutoScrapexter/internal/utils"
)

var sqliteDialect = dialect{
	name:   DriverSQLite,
	insert: `INSERT OR IGNORE INTO listings (` + listingColumns + `) VALUES (` + listingValues + `)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			make TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			price INTEGER,
			year INTEGER,
			mileage INTEGER,
			fuel_type TEXT NOT NULL DEFAULT '',
			transmission TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			images TEXT NOT NULL DEFAULT '[]',
			location TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			source_url TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
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
	},
}

// sqliteDSN adds WAL journaling and a busy timeout unless already set.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "autoscrapexter.db"
	}
	params := []string{}
	if !strings.Contains(dsn, "_journal_mode") {
		params = append(params, "_journal_mode=WAL")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func openSQLite(ctx context.Context, cfg Config, logger utils.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite3", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the busy timeout covers other processes.
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db); err != nil {
		return nil, err
	}
	return newSQLStore(db, sqliteDialect, logger), nil
}
