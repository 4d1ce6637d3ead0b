// internal/output/manager.go
package output

import (
	"fmt"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// NewWriter returns the writer for format at path.
func NewWriter(format OutputFormat, path string) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(path)
	case FormatCSV:
		return NewCSVWriter(path)
	case FormatExcel:
		return NewExcelWriter(path, ExcelConfig{})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Export writes listings to path in the given format. An empty format is
// inferred from the file extension.
func Export(format, path string, listings []listing.Listing) error {
	f, err := ParseFormat(format, path)
	if err != nil {
		return err
	}
	w, err := NewWriter(f, path)
	if err != nil {
		return err
	}
	if err := w.Write(listings); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Close()
}
