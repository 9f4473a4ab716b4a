// Package csvexchange converts item lists to and from CSV.
package csvexchange

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/01moynul/inventory-tracker/internal/models"
)

// Canonical column names.
const (
	ColName          = "name"
	ColSKU           = "sku"
	ColCategory      = "category"
	ColCostPrice     = "cost_price"
	ColSellingPrice  = "selling_price"
	ColQuantity      = "quantity"
	ColProfit        = "profit"
	ColMarginPercent = "margin_percent"
	ColRecommended   = "recommended"

	// aliases accepted on import
	colPrice = "price"
	colStock = "stock"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingHeader is returned when the input has no header row.
var ErrMissingHeader = errors.New("csv: header row required")

// ExportOptions controls which columns Export writes.
type ExportOptions struct {
	IncludeMetrics bool
}

// Export writes items as CSV with a header row and no index column.
func Export(w io.Writer, items []models.ItemView, opts ExportOptions) error {
	cw := csv.NewWriter(w)

	header := []string{ColName, ColSKU, ColCategory, ColCostPrice, ColSellingPrice, ColQuantity}
	if opts.IncludeMetrics {
		header = append(header, ColProfit, ColMarginPercent, ColRecommended)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.Name,
			item.SKU,
			item.Category,
			formatMoney(item.CostPrice),
			formatMoney(item.SellingPrice),
			strconv.Itoa(item.Quantity),
		}
		if opts.IncludeMetrics {
			margin := ""
			if item.MarginPercent != nil {
				margin = formatMoney(*item.MarginPercent)
			}
			record = append(record, formatMoney(item.Profit), margin, strconv.FormatBool(item.Recommended))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv: write %s: %w", item.SKU, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportBytes is Export into a byte slice.
func ExportBytes(items []models.ItemView, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, items, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename names a download, e.g. inventory_export_20250101_093000.csv
// or inventory_export_office-supplies_20250101_093000.csv for one category.
func ExportFilename(now time.Time, category string) string {
	stamp := now.Format("20060102_150405")
	if s := slug.Make(category); s != "" {
		return fmt.Sprintf("inventory_export_%s_%s.csv", s, stamp)
	}
	return fmt.Sprintf("inventory_export_%s.csv", stamp)
}

// RowError reports why a single data row was rejected. Row is the 1-based
// line number in the file, counting the header as line 1.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Err    error  `json:"-"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ImportResult holds the rows that parsed cleanly and those that did not.
// Items[i] came from line Lines[i].
type ImportResult struct {
	Items  []models.NewItem
	Lines  []int
	Errors []RowError
}

type columns struct {
	name, sku, category, cost, selling, quantity int
}

// Import parses CSV with a header row into insertable items. Structural
// problems abort the whole import; per-row problems are collected in
// ImportResult.Errors and the row is skipped.
func Import(r io.Reader) (*ImportResult, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Items: []models.NewItem{}, Lines: []int{}, Errors: []RowError{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		item, rowErr := parseRecord(record, cols, line)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Items = append(result.Items, item)
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func mapColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	lookup := func(names ...string) int {
		for _, n := range names {
			if i, ok := index[n]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		name:     lookup(ColName),
		sku:      lookup(ColSKU),
		category: lookup(ColCategory),
		cost:     lookup(ColCostPrice, colPrice),
		selling:  lookup(ColSellingPrice),
		quantity: lookup(ColQuantity, colStock),
	}

	var missing []string
	if cols.name < 0 {
		missing = append(missing, ColName)
	}
	if cols.sku < 0 {
		missing = append(missing, ColSKU)
	}
	if cols.cost < 0 {
		missing = append(missing, ColCostPrice+" (or "+colPrice+")")
	}
	if cols.quantity < 0 {
		missing = append(missing, ColQuantity+" (or "+colStock+")")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("csv: missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRecord(record []string, cols columns, line int) (models.NewItem, *RowError) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	item := models.NewItem{
		Name:     field(cols.name),
		SKU:      field(cols.sku),
		Category: field(cols.category),
	}
	if item.Name == "" {
		return item, &RowError{Row: line, Column: ColName, Err: errors.New("is required")}
	}
	if item.SKU == "" {
		return item, &RowError{Row: line, Column: ColSKU, Err: errors.New("is required")}
	}

	cost, err := parsePrice(field(cols.cost))
	if err != nil {
		return item, &RowError{Row: line, Column: ColCostPrice, Err: err}
	}
	item.CostPrice = cost

	item.SellingPrice = cost
	if raw := field(cols.selling); raw != "" {
		selling, err := parsePrice(raw)
		if err != nil {
			return item, &RowError{Row: line, Column: ColSellingPrice, Err: err}
		}
		item.SellingPrice = selling
	}

	item.Quantity = parseQuantity(field(cols.quantity))
	if item.Quantity < 0 {
		return item, &RowError{Row: line, Column: ColQuantity, Err: errors.New("must not be negative")}
	}
	return item, nil
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if d.IsNegative() {
		return 0, errors.New("must not be negative")
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is out of range", raw)
	}
	return f, nil
}

var maxQuantity = decimal.NewFromInt(models.MaxQuantity)

// parseQuantity falls back to 0 for anything that is not a whole number in
// the storable range. Integral values such as "3.0" written by spreadsheet
// tools are accepted. Negative whole numbers come back negative so the caller
// can reject the row.
func parseQuantity(raw string) int {
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n > models.MaxQuantity {
			return 0
		}
		return n
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0
	}
	switch {
	case d.IsNegative():
		return -1
	case d.GreaterThan(maxQuantity):
		return 0
	}
	return int(d.IntPart())
}

// formatMoney writes at least two decimal places and never drops precision.
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
