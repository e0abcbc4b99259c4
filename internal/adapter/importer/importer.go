// Package importer reads supplier inventory sheets (CSV or XLSX) into
// inventory inputs for the store's bulk add.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/procurematch/internal/core/domain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingColumn     = errors.New("missing column")
	ErrEmptySheet        = errors.New("sheet has no header row")
)

type field int

const (
	fieldItemName field = iota
	fieldBrand
	fieldQuantity
	fieldPrice
	fieldRegions
	fieldSupplier
	fieldCount
)

// Header aliases per field, in lookup order. A later alias is only used when
// the earlier ones are blank in that row.
var aliases = [fieldCount][]string{
	fieldItemName: {"itemname", "item"},
	fieldBrand:    {"brand"},
	fieldQuantity: {"quantity", "qty"},
	fieldPrice:    {"price"},
	fieldRegions:  {"deliveryregions", "regions"},
	fieldSupplier: {"suppliername", "supplier"},
}

var fieldNames = [fieldCount]string{"itemName", "brand", "quantity", "price", "deliveryRegions", "supplierName"}

// Result holds the parsed rows and the number of rows whose numbers could not
// be read. Rows are not validated here; the store's bulk add drops the ones
// that fail the inventory rule.
type Result struct {
	Rows    []domain.InventoryInput
	Skipped int
}

// ParseFile picks the parser from the file extension.
func ParseFile(path, supplier string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(filepath.Base(path), f, supplier)
}

// Parse reads r as CSV or XLSX according to the extension of name.
func Parse(name string, r io.Reader, supplier string) (Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(r, supplier)
	case ".xlsx":
		return ParseXLSX(r, supplier)
	default:
		return Result{}, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
}

func ParseCSV(r io.Reader, supplier string) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	return parseRecords(records, supplier)
}

// ParseXLSX reads the first sheet of the workbook.
func ParseXLSX(r io.Reader, supplier string) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRecords(rows, supplier)
}

func parseRecords(records [][]string, supplier string) (Result, error) {
	if len(records) == 0 {
		return Result{}, ErrEmptySheet
	}

	columns, err := mapHeader(records[0])
	if err != nil {
		return Result{}, err
	}

	result := Result{Rows: make([]domain.InventoryInput, 0, len(records)-1)}
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		in, ok := parseRow(record, columns, supplier)
		if !ok {
			result.Skipped++
			continue
		}
		result.Rows = append(result.Rows, in)
	}
	return result, nil
}

func mapHeader(header []string) ([fieldCount][]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var columns [fieldCount][]int
	for f := field(0); f < fieldCount; f++ {
		for _, alias := range aliases[f] {
			if i, ok := index[alias]; ok {
				columns[f] = append(columns[f], i)
			}
		}
	}
	if len(columns[fieldItemName]) == 0 {
		return columns, fmt.Errorf("%w: %s", ErrMissingColumn, fieldNames[fieldItemName])
	}
	return columns, nil
}

func parseRow(record []string, columns [fieldCount][]int, supplier string) (domain.InventoryInput, bool) {
	value := func(f field) string {
		for _, i := range columns[f] {
			if i < len(record) {
				if v := strings.TrimSpace(record[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	in := domain.InventoryInput{
		SupplierName:    supplier,
		ItemName:        value(fieldItemName),
		Brand:           value(fieldBrand),
		DeliveryRegions: value(fieldRegions),
		Price:           decimal.Zero,
	}
	// The caller's supplier wins; the sheet column only fills a blank one.
	if in.SupplierName == "" {
		in.SupplierName = value(fieldSupplier)
	}

	if q := value(fieldQuantity); q != "" {
		// Spreadsheets often store whole counts as "100.0".
		d, err := decimal.NewFromString(q)
		if err != nil || !d.IsInteger() {
			return domain.InventoryInput{}, false
		}
		in.Quantity = int(d.IntPart())
	}
	if p := value(fieldPrice); p != "" {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return domain.InventoryInput{}, false
		}
		in.Price = d
	}
	return in, true
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
