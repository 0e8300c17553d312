package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// RawRow is one data row keyed by sanitized header name. Number is the
// 1-based position in the source file, header row included.
type RawRow struct {
	Number int
	Values map[string]string
}

// Get returns the trimmed cell value for a column, empty when absent.
func (r RawRow) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Table is the normalized content of an import file.
type Table struct {
	Headers []string
	Rows    []RawRow
}

func parseTable(fileName string, payload []byte) (Table, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(records)
}

func normalizeTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, errors.New("no rows found in file")
	}

	var headerRow []string
	headerIndex := -1
	for idx, record := range records {
		if len(cleanRow(record)) == 0 {
			continue
		}
		headerRow = record
		headerIndex = idx
		break
	}

	if headerRow == nil {
		return Table{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)

	var dataRows []RawRow
	for idx := headerIndex + 1; idx < len(records); idx++ {
		record := records[idx]
		if len(cleanRow(record)) == 0 {
			continue
		}
		padded := padRow(record, len(headers))
		values := make(map[string]string, len(headers))
		for col, header := range headers {
			values[header] = strings.TrimSpace(padded[col])
		}
		dataRows = append(dataRows, RawRow{Number: idx + 1, Values: values})
	}

	return Table{Headers: headers, Rows: dataRows}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	for i := len(row); i < length; i++ {
		padded[i] = ""
	}
	return padded
}
