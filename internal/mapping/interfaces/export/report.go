package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

// Formats supported by the report builders.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ContentType returns the media type for a report format.
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ReportLine is one canonical field of the mapping category.
type ReportLine struct {
	Field        string
	Label        string
	Required     bool
	SourceColumn string
}

// Report is the printable form of a persisted mapping.
type Report struct {
	Dataset     string
	Category    schema.Category
	UpdatedAt   time.Time
	Fingerprint string
	Lines       []ReportLine
	Mapped      int
	Required    int
	RequiredMet int
	Extra       []ReportLine
}

// NewReport lists every catalog field of the mapping category with the
// column mapped to it. Mapped fields missing from the catalog are kept
// in Extra.
func NewReport(m *mapping.PersistedMapping, catalog schema.Catalog) (Report, error) {
	if m == nil {
		return Report{}, errors.New("mapping export: nil mapping")
	}
	fingerprint, err := m.Fingerprint()
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Dataset:     mapping.DatasetLabel(m.DatasetID),
		Category:    m.Category,
		UpdatedAt:   m.UpdatedAt,
		Fingerprint: fingerprint,
	}
	known := make(map[string]struct{})
	for _, field := range catalog.ByCategory(m.Category) {
		known[field.Key] = struct{}{}
		line := ReportLine{
			Field:        field.Key,
			Label:        field.Label,
			Required:     field.Required,
			SourceColumn: m.Fields[field.Key],
		}
		if line.SourceColumn != "" {
			report.Mapped++
		}
		if field.Required {
			report.Required++
			if line.SourceColumn != "" {
				report.RequiredMet++
			}
		}
		report.Lines = append(report.Lines, line)
	}
	for _, target := range m.TargetFields() {
		if _, ok := known[target]; ok {
			continue
		}
		label := target
		if field, ok := catalog.Lookup(target); ok {
			label = field.Label
		}
		report.Extra = append(report.Extra, ReportLine{Field: target, Label: label, SourceColumn: m.Fields[target]})
		report.Mapped++
	}
	return report, nil
}

// BuildMappingPDF renders a one-page PDF for a mapping report.
func BuildMappingPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Field Mapping Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Dataset: %s", report.Dataset))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Category: %s", report.Category))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Updated: %s", report.UpdatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fingerprint: %s", report.Fingerprint))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Mapped fields: %d", report.Mapped))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Required fields mapped: %d/%d", report.RequiredMet, report.Required))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Field", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Label", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Required", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Source Column", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	lines := append(append([]ReportLine(nil), report.Lines...), report.Extra...)
	for _, line := range lines {
		pdf.CellFormat(50, 6, line.Field, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, line.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, yesNo(line.Required), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, line.SourceColumn, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMappingXLSX renders a workbook with a summary and a fields sheet.
func BuildMappingXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	fieldsSheet := "fields"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(fieldsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Field Mapping Report")
	_ = f.SetCellValue(summarySheet, "A3", "Dataset")
	_ = f.SetCellValue(summarySheet, "B3", report.Dataset)
	_ = f.SetCellValue(summarySheet, "A4", "Category")
	_ = f.SetCellValue(summarySheet, "B4", string(report.Category))
	_ = f.SetCellValue(summarySheet, "A5", "Updated")
	_ = f.SetCellValue(summarySheet, "B5", report.UpdatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Fingerprint")
	_ = f.SetCellValue(summarySheet, "B6", report.Fingerprint)
	_ = f.SetCellValue(summarySheet, "A7", "Mapped fields")
	_ = f.SetCellValue(summarySheet, "B7", report.Mapped)
	_ = f.SetCellValue(summarySheet, "A8", "Required fields")
	_ = f.SetCellValue(summarySheet, "B8", report.Required)
	_ = f.SetCellValue(summarySheet, "A9", "Required fields mapped")
	_ = f.SetCellValue(summarySheet, "B9", report.RequiredMet)

	_ = f.SetCellValue(fieldsSheet, "A1", "Field")
	_ = f.SetCellValue(fieldsSheet, "B1", "Label")
	_ = f.SetCellValue(fieldsSheet, "C1", "Required")
	_ = f.SetCellValue(fieldsSheet, "D1", "Source Column")
	lines := append(append([]ReportLine(nil), report.Lines...), report.Extra...)
	for i, line := range lines {
		row := i + 2
		_ = f.SetCellValue(fieldsSheet, fmt.Sprintf("A%d", row), line.Field)
		_ = f.SetCellValue(fieldsSheet, fmt.Sprintf("B%d", row), line.Label)
		_ = f.SetCellValue(fieldsSheet, fmt.Sprintf("C%d", row), yesNo(line.Required))
		_ = f.SetCellValue(fieldsSheet, fmt.Sprintf("D%d", row), line.SourceColumn)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build renders report in the requested format.
func Build(format string, report Report) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return BuildMappingXLSX(report)
	case FormatPDF:
		return BuildMappingPDF(report)
	default:
		return nil, fmt.Errorf("mapping export: unsupported format %q", format)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
