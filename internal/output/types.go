// internal/output/types.go
package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatExcel OutputFormat = "xlsx"
)

// ValidOutputFormats returns all valid output format values
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatJSON, FormatCSV, FormatExcel}
}

// ParseFormat parses an explicit format or, when empty, infers it from the
// file extension.
func ParseFormat(format, path string) (OutputFormat, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch f {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("unsupported output format %q", f)
}

// Writer exports listings. Write may be called several times.
type Writer interface {
	Write(listings []listing.Listing) error
	Close() error
}

// Columns is the fixed export column order.
var Columns = []string{
	"id", "title", "make", "model", "price", "year", "mileage",
	"fuel_type", "transmission", "power_hp", "doors", "seats",
	"color", "body_type", "location", "seller_type",
	"source", "source_url", "images", "features", "created_at",
}

// listSeparator joins images and features inside one cell.
const listSeparator = " | "

// cellValues returns l in Columns order. Missing numbers are nil.
func cellValues(l *listing.Listing) []interface{} {
	var created interface{}
	if !l.CreatedAt.IsZero() {
		created = l.CreatedAt.UTC()
	}
	return []interface{}{
		l.ID, l.Title, l.Make, l.Model,
		deref64(l.Price), deref(l.Year), deref64(l.Mileage),
		l.FuelType, l.Transmission, deref(l.PowerHP), deref(l.Doors), deref(l.Seats),
		l.Color, l.BodyType, l.Location, l.SellerType,
		l.Source, l.SourceURL,
		strings.Join(l.Images, listSeparator), strings.Join(l.Features, listSeparator),
		created,
	}
}

// textValues renders cellValues as strings.
func textValues(l *listing.Listing) []string {
	values := cellValues(l)
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case string:
			out[i] = x
		case int64:
			out[i] = strconv.FormatInt(x, 10)
		case int:
			out[i] = strconv.Itoa(x)
		case time.Time:
			out[i] = x.Format(time.RFC3339)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

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
