// internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// JSONWriter writes listings as one indented JSON array. The array is
// emitted on Close so repeated Write calls produce valid JSON.
type JSONWriter struct {
	out      io.Writer
	closer   io.Closer
	listings []listing.Listing
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}
	return &JSONWriter{out: file, closer: file}, nil
}

// NewJSONStream writes to w, which the caller closes.
func NewJSONStream(w io.Writer) *JSONWriter {
	return &JSONWriter{out: w}
}

// Write buffers listings.
func (w *JSONWriter) Write(listings []listing.Listing) error {
	w.listings = append(w.listings, listings...)
	return nil
}

// Close encodes the buffered listings and closes the file.
func (w *JSONWriter) Close() error {
	if w.out == nil {
		return nil
	}
	if w.listings == nil {
		w.listings = []listing.Listing{}
	}
	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(w.listings)
	w.out = nil
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
