package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// LoadTable reads a CSV or XLSX file into records. The first non-empty row is
// the header; blank cells are left out of the record. Cells of textFields are
// kept verbatim, the rest are typed by coerceCell.
func LoadTable(path, sheet string, textFields ...string) ([]domain.Record, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = parseCSV(payload)
	case ".xlsx":
		rows, err = parseExcel(payload, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse source %s: %w", path, err)
	}
	keepText := make(map[string]bool, len(textFields))
	for _, field := range textFields {
		keepText[field] = true
	}
	return rowsToRecords(rows, keepText)
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.TrimSpace(sheet) == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("excel file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func rowsToRecords(rows [][]string, keepText map[string]bool) ([]domain.Record, error) {
	var headers []string
	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(row)
			continue
		}
		record := make(domain.Record, len(headers))
		for i, header := range headers {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			if value == "" {
				continue
			}
			if keepText[header] {
				record[header] = value
			} else {
				record[header] = coerceCell(value)
			}
		}
		records = append(records, record)
	}
	if headers == nil {
		return nil, errors.New("header row could not be detected")
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders turns header labels into field names: separators become
// underscores, blanks get a positional name and duplicates get a suffix.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)
	used := make(map[string]bool, len(raw))

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		n := max(seen[base], 1)
		for used[name] {
			n++
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[base] = n
		used[name] = true

		headers[idx] = name
	}

	return headers
}

// coerceCell types a cell as bool, integer or float when it unambiguously looks
// like one, and keeps it as text otherwise. Leading zeros stay text so codes
// such as "0042" survive.
func coerceCell(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if hasLeadingZero(raw) {
		return raw
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return raw
}

func hasLeadingZero(raw string) bool {
	digits := strings.TrimPrefix(raw, "-")
	return len(digits) > 1 && digits[0] == '0' && digits[1] != '.'
}
