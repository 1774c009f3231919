// Package importer loads inventory spreadsheets into the store and writes them back out.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RequiredHeaders is the column contract shared by imports and exports.
var RequiredHeaders = []string{
	"SR NO.", "PRODUCT NAME", "PRODUCT ID", "PRODUCTS ORDERED",
	"PRODUCTS USED", "PRODUCTS IN STOCK", "RESTOCK",
}

const (
	colSerial = iota
	colName
	colSKU
	colOrdered
	colUsed
	colStock
	colRestock
)

const (
	restockMinimum = 15
	defaultMinimum = 5
)

// HeaderError is returned when a source does not start with RequiredHeaders.
type HeaderError struct {
	Found    []string
	Expected []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("headers do not match required format. Found: %q, Expected: %q", e.Found, e.Expected)
}

// IsHeaderError reports whether err carries a HeaderError.
func IsHeaderError(err error) bool {
	var target *HeaderError
	return errors.As(err, &target)
}

// ParseError is returned when a source cannot be read as xlsx or CSV at all.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err carries a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(name))
}

type Mode string

const (
	ModeAppend     Mode = "append"
	ModeReplaceAll Mode = "replace_all"
)

// ParseMode maps anything other than replace_all to append.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeReplaceAll {
		return ModeReplaceAll
	}
	return ModeAppend
}

// Row is one parsed data line.
type Row struct {
	Line              int
	Name              string
	SKU               string
	Stock             int
	MinimumStockLevel int
}

// ConvertXLSXToCSV copies the first non-empty worksheet of an xlsx workbook to
// CSV under the canonical header. Fully empty rows are dropped, long rows are
// cut to the header width and short ones padded.
func ConvertXLSXToCSV(r io.Reader, w io.Writer) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return &ParseError{Op: "open xlsx", Err: err}
	}
	defer f.Close()

	var rows [][]string
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return &ParseError{Op: "read rows from sheet " + sheet, Err: err}
		}
		if start := firstNonEmpty(sheetRows); start >= 0 {
			rows = sheetRows[start:]
			break
		}
	}
	if rows == nil {
		return &HeaderError{Found: []string{}, Expected: RequiredHeaders}
	}

	header := trimAll(rows[0])
	if !headerPrefixMatches(header) {
		return &HeaderError{Found: header, Expected: RequiredHeaders}
	}

	out := csv.NewWriter(w)
	if err := out.Write(RequiredHeaders); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, record := range rows[1:] {
		if isEmpty(record) {
			continue
		}
		if err := out.Write(fit(record)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}

// ParseCSV reads the whole source. The trimmed header must equal
// RequiredHeaders exactly. Bare quotes inside fields are kept as text.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &HeaderError{Found: []string{}, Expected: RequiredHeaders}
	}
	if err != nil {
		return nil, readError("read csv header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	header = trimAll(header)
	if !headerEquals(header) {
		return nil, &HeaderError{Found: header, Expected: RequiredHeaders}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError("read csv row", err)
		}
		if isEmpty(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		record = fit(record)
		rows = append(rows, Row{
			Line:              line,
			Name:              strings.TrimSpace(record[colName]),
			SKU:               strings.TrimSpace(record[colSKU]),
			Stock:             parseStock(record[colStock]),
			MinimumStockLevel: minimumFor(record[colRestock]),
		})
	}
	return rows, nil
}

// readError marks malformed CSV as a ParseError. Failures of the underlying
// reader are passed through.
func readError(op string, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// parseStock truncates toward zero. Anything unparsable or negative becomes 0.
func parseStock(s string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

func minimumFor(restock string) int {
	if strings.Contains(strings.ToUpper(restock), "NEEDS") {
		return restockMinimum
	}
	return defaultMinimum
}

func headerEquals(header []string) bool {
	if len(header) != len(RequiredHeaders) {
		return false
	}
	for i, h := range RequiredHeaders {
		if header[i] != h {
			return false
		}
	}
	return true
}

func headerPrefixMatches(header []string) bool {
	if len(header) < len(RequiredHeaders) {
		return false
	}
	for i, h := range RequiredHeaders {
		if !strings.EqualFold(header[i], h) {
			return false
		}
	}
	return true
}

func firstNonEmpty(rows [][]string) int {
	for i, row := range rows {
		if !isEmpty(row) {
			return i
		}
	}
	return -1
}

func isEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

func fit(record []string) []string {
	out := make([]string, len(RequiredHeaders))
	copy(out, record)
	return out
}
