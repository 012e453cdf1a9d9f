// Package export writes search results as JSON, CSV or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/use-agent/shelfscan/models"
	"github.com/xuri/excelize/v2"
)

// Format is an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds products in XLSX output.
const SheetName = "Products"

var header = []string{"title", "price", "image", "link"}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q (want json, csv or xlsx)", s)
	}
}

// Write encodes products to w in format f.
func Write(w io.Writer, f Format, products []models.Product) error {
	if products == nil {
		products = []models.Product{}
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, products)
	case FormatCSV:
		return writeCSV(w, products)
	case FormatXLSX:
		return writeXLSX(w, products)
	default:
		return fmt.Errorf("export: unsupported format %q", f)
	}
}

func writeJSON(w io.Writer, products []models.Product) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, p := range products {
		row := []string{csvCell(p.Title), csvCell(p.Price), csvCell(p.Image), csvCell(p.Link)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvCell prefixes values that a spreadsheet would evaluate as a formula.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func writeXLSX(w io.Writer, products []models.Product) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", bold); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}

	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		row := []any{p.Title, p.Price, p.Image, p.Link}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 60); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "C", "D", 50); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	if len(products) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), len(products)+1)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.AutoFilter(SheetName, "A1:"+last, nil); err != nil {
			return fmt.Errorf("export: auto filter: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}
