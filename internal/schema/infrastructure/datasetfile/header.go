package datasetfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyDataset is returned when a file has no header row.
var ErrEmptyDataset = errors.New("dataset file: no header row")

const utf8BOM = "\ufeff"

// ReadHeader extracts the header row of a CSV, TSV or XLSX file. The format
// follows the file extension of name. sheet selects a worksheet for XLSX and
// defaults to the first one.
func ReadHeader(name string, data []byte, sheet string) ([]string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return readXLSXHeader(data, sheet)
	case ".tsv":
		return readDelimitedHeader(data, '\t')
	default:
		return readDelimitedHeader(data, ',')
	}
}

func readDelimitedHeader(data []byte, comma rune) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("dataset file: parse header: %w", err)
	}
	return cleanHeader(record)
}

func readXLSXHeader(data []byte, sheet string) ([]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dataset file: open workbook: %w", err)
	}
	defer file.Close()

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyDataset
		}
		sheet = sheets[0]
	}
	rows, err := file.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("dataset file: sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return nil, err
		}
		return nil, ErrEmptyDataset
	}
	record, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dataset file: read header: %w", err)
	}
	return cleanHeader(record)
}

func cleanHeader(record []string) ([]string, error) {
	header := make([]string, len(record))
	nonEmpty := 0
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		header[i] = strings.TrimSpace(name)
		if header[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, ErrEmptyDataset
	}
	return header, nil
}
