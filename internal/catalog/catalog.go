// internal/catalog/catalog.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// DefaultLimit caps catalog rows returned by one query.
const DefaultLimit = 100

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Query selects catalog rows. Text tokens are ANDed and matched against
// title, make and model ignoring case and accents. Numeric range filters are
// pushed down with missing values passing; the rest of the filter set is
// left to the post-processor.
type Query struct {
	Text    string
	Filters listing.Filters
	Limit   int
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > DefaultLimit {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) tokens() []string {
	return strings.Fields(pipeline.FoldKey(q.Text))
}

// Store is the persistent listing catalog. Upsert is keyed by source URL and
// is safe under concurrent writers: re-inserting a known URL is a no-op.
type Store interface {
	Upsert(ctx context.Context, listings []listing.Listing) (inserted int, err error)
	Query(ctx context.Context, q Query) ([]listing.Listing, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver       string `yaml:"driver" json:"driver"`
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	AutoMigrate  bool   `yaml:"auto_migrate" json:"auto_migrate"`
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverMemory, DriverSQLite, DriverPostgres, DriverMySQL}
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, logger utils.Logger) (Store, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithField("component", "catalog")

	var (
		s   *SQLStore
		err error
	)
	switch cfg.Driver {
	case "", DriverMemory:
		logger.Info("using in-memory catalog")
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err = openSQLite(ctx, cfg, logger)
	case DriverPostgres:
		s, err = openPostgres(ctx, cfg, logger)
	case DriverMySQL:
		s, err = openMySQL(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	logger.Infof("catalog connected (%s)", cfg.Driver)
	return s, nil
}

// prepare fills IDs and the search key. Listings without a source URL cannot
// be keyed and are skipped.
func prepare(listings []listing.Listing) []listing.Listing {
	out := make([]listing.Listing, 0, len(listings))
	for _, l := range listings {
		if strings.TrimSpace(l.SourceURL) == "" {
			continue
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.CreatedAt
		}
		out = append(out, l)
	}
	return out
}

func searchKey(l *listing.Listing) string {
	return pipeline.FoldKey(l.Title + " " + l.Make + " " + l.Model)
}

// matches applies Query semantics in memory.
func matches(l *listing.Listing, key string, q Query) bool {
	for _, tok := range q.tokens() {
		if !strings.Contains(key, tok) {
			return false
		}
	}
	f := q.Filters
	return inRange64(l.Price, f.PriceMin, f.PriceMax) &&
		inRange(l.Year, f.YearMin, f.YearMax) &&
		inRange64(l.Mileage, f.MileageMin, f.MileageMax)
}

func inRange64(v, min, max *int64) bool {
	if v == nil {
		return true
	}
	return (min == nil || *v >= *min) && (max == nil || *v <= *max)
}

func inRange(v, min, max *int) bool {
	if v == nil {
		return true
	}
	return (min == nil || *v >= *min) && (max == nil || *v <= *max)
}
