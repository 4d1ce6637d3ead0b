// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// CSVWriter writes data in CSV format
type CSVWriter struct {
	file          io.Closer
	writer        *csv.Writer
	headerWritten bool
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}
	return &CSVWriter{file: file, writer: csv.NewWriter(file)}, nil
}

// NewCSVStream writes to w, which the caller closes.
func NewCSVStream(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// Write writes one row per listing, preceded by the header on first use.
func (w *CSVWriter) Write(listings []listing.Listing) error {
	if !w.headerWritten {
		if err := w.writer.Write(Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.headerWritten = true
	}
	for i := range listings {
		if err := w.writer.Write(textValues(&listings[i])); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close closes the CSV writer
func (w *CSVWriter) Close() error {
	if w.writer == nil {
		return nil
	}
	if !w.headerWritten {
		w.writer.Write(Columns)
	}
	w.writer.Flush()
	err := w.writer.Error()
	w.writer = nil
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
