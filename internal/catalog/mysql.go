// internal/catalog/mysql.go
package catalog

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/valpere/AutoScrapexter/internal/utils"
)

var mysqlDialect = dialect{
	name:   DriverMySQL,
	insert: `INSERT IGNORE INTO listings (` + listingColumns + `) VALUES (` + listingValues + `)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			title VARCHAR(512) NOT NULL,
			make VARCHAR(128) NOT NULL DEFAULT '',
			model VARCHAR(128) NOT NULL DEFAULT '',
			price BIGINT NULL,
			year INT NULL,
			mileage BIGINT NULL,
			fuel_type VARCHAR(64) NOT NULL DEFAULT '',
			transmission VARCHAR(64) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			images TEXT NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			source VARCHAR(64) NOT NULL,
			source_url TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			color VARCHAR(64) NOT NULL DEFAULT '',
			doors INT NULL,
			seats INT NULL,
			power_hp INT NULL,
			body_type VARCHAR(64) NOT NULL DEFAULT '',
			seller_type VARCHAR(32) NOT NULL DEFAULT '',
			features TEXT NOT NULL,
			search_key TEXT NOT NULL,
			UNIQUE KEY uq_listings_source_url (source_url(255)),
			KEY idx_listings_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

// mysqlDSN forces time parsing so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func openMySQL(ctx context.Context, cfg Config, logger utils.Logger) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql catalog requires a dsn")
	}
	dsn, err := mysqlDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("mysql", dsn)
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
	return newSQLStore(db, mysqlDialect, logger), nil
}
