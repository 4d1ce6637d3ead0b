// internal/output/excel.go
package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// DefaultExcelMaxSheetRows is the maximum rows per sheet in Excel
const DefaultExcelMaxSheetRows = 1048576

// columnWidths by export column, in characters. Unlisted columns use
// defaultColumnWidth.
var columnWidths = map[string]float64{
	"id":         38,
	"title":      40,
	"location":   22,
	"source_url": 50,
	"images":     50,
	"features":   50,
	"created_at": 20,
}

const defaultColumnWidth = 14

// ExcelConfig configuration for Excel output
type ExcelConfig struct {
	SheetName    string `yaml:"sheet_name" json:"sheet_name"`
	MaxSheetRows int    `yaml:"max_sheet_rows" json:"max_sheet_rows"`
}

// ExcelWriter writes listings to an xlsx workbook. Rows past MaxSheetRows
// continue on a new sheet.
type ExcelWriter struct {
	file     *excelize.File
	path     string
	config   ExcelConfig
	sheet    string
	sheets   int
	row      int
	styles   excelStyles
	finished bool
}

type excelStyles struct {
	header int
	price  int
	date   int
}

// NewExcelWriter creates a workbook saved to path on Close. An empty path
// means the caller uses WriteTo.
func NewExcelWriter(path string, config ExcelConfig) (*ExcelWriter, error) {
	if config.SheetName == "" {
		config.SheetName = "Listings"
	}
	if config.MaxSheetRows <= 1 || config.MaxSheetRows > DefaultExcelMaxSheetRows {
		config.MaxSheetRows = DefaultExcelMaxSheetRows
	}

	file := excelize.NewFile()
	w := &ExcelWriter{file: file, path: path, config: config}

	styles, err := newExcelStyles(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.styles = styles

	if err := file.SetSheetName(file.GetSheetName(0), config.SheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := w.startSheet(config.SheetName); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	s.price, err = f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return s, fmt.Errorf("failed to create price style: %w", err)
	}
	dateFmt := "yyyy-mm-dd hh:mm"
	s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return s, fmt.Errorf("failed to create date style: %w", err)
	}
	return s, nil
}

// startSheet writes the header row and column layout of a sheet.
func (w *ExcelWriter) startSheet(name string) error {
	if w.sheets > 0 {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}
	w.sheets++
	w.sheet = name
	w.row = 1

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := w.file.SetCellStyle(name, "A1", last+"1", w.styles.header); err != nil {
		return err
	}
	for i, c := range Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width, ok := columnWidths[c]
		if !ok {
			width = defaultColumnWidth
		}
		if err := w.file.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}
	if err := w.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	w.row++
	return nil
}

// Write appends one row per listing.
func (w *ExcelWriter) Write(listings []listing.Listing) error {
	for i := range listings {
		if w.row > w.config.MaxSheetRows {
			if err := w.finishSheet(); err != nil {
				return err
			}
			if err := w.startSheet(fmt.Sprintf("%s %d", w.config.SheetName, w.sheets+1)); err != nil {
				return err
			}
		}
		values := cellValues(&listings[i])
		cell, _ := excelize.CoordinatesToCellName(1, w.row)
		if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", w.row, err)
		}
		w.row++
	}
	return nil
}

// finishSheet applies the auto filter and number formats to the written
// rows of the current sheet.
func (w *ExcelWriter) finishSheet() error {
	lastRow := w.row - 1
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := w.file.AutoFilter(w.sheet, fmt.Sprintf("A1:%s%d", lastCol, max(lastRow, 1)), nil); err != nil {
		return fmt.Errorf("failed to set auto filter: %w", err)
	}
	if lastRow < 2 {
		return nil
	}
	formats := map[string]int{"price": w.styles.price, "mileage": w.styles.price, "created_at": w.styles.date}
	for i, c := range Columns {
		style, ok := formats[c]
		if !ok {
			continue
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := w.file.SetCellStyle(w.sheet, fmt.Sprintf("%s2", col), fmt.Sprintf("%s%d", col, lastRow), style); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns the number of data rows written across all sheets.
func (w *ExcelWriter) Rows() int {
	return (w.sheets-1)*(w.config.MaxSheetRows-1) + w.row - 2
}

// WriteTo finalizes the workbook into out.
func (w *ExcelWriter) WriteTo(out io.Writer) (int64, error) {
	if err := w.finish(); err != nil {
		return 0, err
	}
	return w.file.WriteTo(out)
}

func (w *ExcelWriter) finish() error {
	if w.finished {
		return nil
	}
	w.finished = true
	if err := w.finishSheet(); err != nil {
		return err
	}
	w.file.SetActiveSheet(0)
	return nil
}

// Close saves the workbook when a path was given.
func (w *ExcelWriter) Close() error {
	defer w.file.Close()
	if err := w.finish(); err != nil {
		return err
	}
	if w.path == "" {
		return nil
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.path, err)
	}
	return nil
}
