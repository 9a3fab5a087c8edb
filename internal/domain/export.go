package domain

import "strings"

// ExportFormat enumerates supported download formats.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat normalizes a user supplied format name.
func ParseExportFormat(raw string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case ExportFormatCSV:
		return ExportFormatCSV, true
	case ExportFormatJSON:
		return ExportFormatJSON, true
	case ExportFormatXLSX:
		return ExportFormatXLSX, true
	default:
		return "", false
	}
}

// Extension returns the file suffix for the format, including the dot.
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// MIMEType returns the content type a download of this format is served with.
func (f ExportFormat) MIMEType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv;charset=utf-8"
	case ExportFormatJSON:
		return "application/json"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ExportColumn derives one output column from a record.
type ExportColumn struct {
	Header   string
	Accessor func(Record) string
}

// FieldColumn exports a record field under the given header.
func FieldColumn(header, field string) ExportColumn {
	if strings.TrimSpace(header) == "" {
		header = field
	}
	return ExportColumn{
		Header: header,
		Accessor: func(r Record) string {
			return r.Text(field)
		},
	}
}

// FieldColumns exports each field under its own name.
func FieldColumns(fields []string) []ExportColumn {
	columns := make([]ExportColumn, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, FieldColumn(field, field))
	}
	return columns
}

// ColumnSpec is the declarative form of an export column used by catalog files.
type ColumnSpec struct {
	Header string `json:"header" yaml:"header"`
	Field  string `json:"field" yaml:"field"`
}

// Columns binds column specs to field accessors.
func Columns(specs []ColumnSpec) []ExportColumn {
	columns := make([]ExportColumn, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Field) == "" {
			continue
		}
		columns = append(columns, FieldColumn(spec.Header, spec.Field))
	}
	return columns
}

// ExportFile is an encoded download handed to a sink.
type ExportFile struct {
	Filename string
	MIMEType string
	Content  []byte
	Rows     int
}

// WithExtension appends ext to filename unless it already ends with it.
func WithExtension(filename, ext string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "export"
	}
	if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
		return filename
	}
	return filename + ext
}
