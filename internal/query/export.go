package query

import (
	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/export"
)

// ExportCSV encodes the filtered view through columns. With no columns, every
// field present in the view becomes a column.
func (e *Engine) ExportCSV(columns []domain.ExportColumn, filename string) domain.ExportFile {
	records := e.FilteredRecords()
	return domain.ExportFile{
		Filename: domain.WithExtension(filename, domain.ExportFormatCSV.Extension()),
		MIMEType: domain.ExportFormatCSV.MIMEType(),
		Content:  export.EncodeCSV(records, columns, e.csv),
		Rows:     len(records),
	}
}

// ExportJSON encodes the filtered view as an indented JSON array.
func (e *Engine) ExportJSON(filename string) (domain.ExportFile, error) {
	return export.Encode(domain.ExportFormatJSON, filename, e.FilteredRecords(), nil, e.csv)
}

// ExportXLSX encodes the filtered view as a single-sheet workbook.
func (e *Engine) ExportXLSX(columns []domain.ExportColumn, filename, sheet string) (domain.ExportFile, error) {
	records := e.FilteredRecords()
	content, err := export.EncodeWorkbook(export.Sheet{Name: sheet, Columns: columns, Records: records})
	if err != nil {
		return domain.ExportFile{}, err
	}
	return domain.ExportFile{
		Filename: domain.WithExtension(filename, domain.ExportFormatXLSX.Extension()),
		MIMEType: domain.ExportFormatXLSX.MIMEType(),
		Content:  content,
		Rows:     len(records),
	}, nil
}

// Export encodes the filtered view in format.
func (e *Engine) Export(format domain.ExportFormat, columns []domain.ExportColumn, filename string) (domain.ExportFile, error) {
	switch format {
	case domain.ExportFormatCSV:
		return e.ExportCSV(columns, filename), nil
	case domain.ExportFormatXLSX:
		return e.ExportXLSX(columns, filename, filename)
	default:
		return export.Encode(format, filename, e.FilteredRecords(), columns, e.csv)
	}
}
