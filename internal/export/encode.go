package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when a download format is not known.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// CSVOptions tunes CSV encoding.
type CSVOptions struct {
	// ByteOrderMark prefixes the document with a UTF-8 BOM so spreadsheet
	// applications detect the encoding.
	ByteOrderMark bool
}

// EncodeCSV renders records through columns. Every cell, headers included, is
// wrapped in double quotes with embedded quotes doubled. Rows are separated by
// a single newline and the document has no trailing newline.
func EncodeCSV(records []domain.Record, columns []domain.ExportColumn, opts CSVOptions) []byte {
	if len(columns) == 0 {
		columns = domain.FieldColumns(domain.UnionKeys(records))
	}
	var buf bytes.Buffer
	if opts.ByteOrderMark {
		buf.Write(byteOrderMark)
	}
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = column.Header
	}
	writeCSVRow(&buf, headers)

	cells := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			cells[i] = cellValue(column, record)
		}
		buf.WriteByte('\n')
		writeCSVRow(&buf, cells)
	}
	return buf.Bytes()
}

func writeCSVRow(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(QuoteCSV(cell))
	}
}

// QuoteCSV wraps a cell value in double quotes, doubling any embedded quote.
func QuoteCSV(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func cellValue(column domain.ExportColumn, record domain.Record) string {
	if column.Accessor == nil {
		return ""
	}
	return column.Accessor(record)
}

// EncodeJSON renders records as a two-space indented JSON array of their raw
// field values.
func EncodeJSON(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return encoded, nil
}

// Sheet is one worksheet of an XLSX workbook.
type Sheet struct {
	Name    string
	Columns []domain.ExportColumn
	Records []domain.Record
}

const maxSheetNameLength = 31

// EncodeWorkbook renders sheets into an XLSX document. Each sheet gets a header
// row followed by one row per record.
func EncodeWorkbook(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if len(sheets) == 0 {
		sheets = []Sheet{{Name: "Sheet1"}}
	}
	const defaultSheet = "Sheet1"
	used := make(map[string]int)
	for idx, sheet := range sheets {
		name := sheetName(sheet.Name, idx, used)
		if idx == 0 {
			if name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return nil, fmt.Errorf("rename sheet %s: %w", name, err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, sheet); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, sheet Sheet) error {
	columns := sheet.Columns
	if len(columns) == 0 {
		columns = domain.FieldColumns(domain.UnionKeys(sheet.Records))
	}
	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column.Header
	}
	if err := setRow(f, name, 1, header); err != nil {
		return err
	}
	for rowIdx, record := range sheet.Records {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = cellValue(column, record)
		}
		if err := setRow(f, name, rowIdx+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// sheetName trims names to the XLSX limit, strips forbidden characters and
// keeps them unique within the workbook.
func sheetName(raw string, idx int, used map[string]int) string {
	name := strings.TrimSpace(raw)
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, name)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	name = truncateRunes(name, maxSheetNameLength)
	key := strings.ToLower(name)
	count := used[key]
	used[key] = count + 1
	if count > 0 {
		suffix := fmt.Sprintf("_%d", count+1)
		name = truncateRunes(name, maxSheetNameLength-len(suffix)) + suffix
		used[strings.ToLower(name)]++
	}
	return name
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Encode renders records in the requested format into a named ExportFile.
func Encode(format domain.ExportFormat, filename string, records []domain.Record, columns []domain.ExportColumn, opts CSVOptions) (domain.ExportFile, error) {
	file := domain.ExportFile{
		Filename: domain.WithExtension(filename, format.Extension()),
		MIMEType: format.MIMEType(),
		Rows:     len(records),
	}
	switch format {
	case domain.ExportFormatCSV:
		file.Content = EncodeCSV(records, columns, opts)
	case domain.ExportFormatJSON:
		content, err := EncodeJSON(records)
		if err != nil {
			return domain.ExportFile{}, err
		}
		file.Content = content
	case domain.ExportFormatXLSX:
		sheet := strings.TrimSuffix(file.Filename, format.Extension())
		content, err := EncodeWorkbook(Sheet{Name: sheet, Columns: columns, Records: records})
		if err != nil {
			return domain.ExportFile{}, err
		}
		file.Content = content
	default:
		return domain.ExportFile{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return file, nil
}
