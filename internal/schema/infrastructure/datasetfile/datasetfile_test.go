package datasetfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	schema "datamap-cloud/internal/schema/domain"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadHeader_CSV(t *testing.T) {
	header, err := ReadHeader("orders.csv", []byte("\ufeffcust, amount ,,sku\n1,2,3,4\n"), "")
	require.NoError(t, err)
	require.Equal(t, []string{"cust", "amount", "", "sku"}, header)

	header, err = ReadHeader("orders.tsv", []byte("a\tb\n"), "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, header)

	_, err = ReadHeader("empty.csv", nil, "")
	require.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ReadHeader("blank.csv", []byte(" , \n"), "")
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestReadHeader_XLSX(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"Customer Name", "Email"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"Ada", "ada@example.com"}))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	header, err := ReadHeader("customers.xlsx", buf.Bytes(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"Customer Name", "Email"}, header)

	_, err = ReadHeader("customers.xlsx", buf.Bytes(), "Missing")
	require.Error(t, err)
}

func TestSource_ManifestAndDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte("order_no,total,customer\n1,9.5,ada\n"), 0o600))
	manifestPath := filepath.Join(dir, "datasets.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte("datasets:\n  - id: 12\n    name: orders\n    url: orders.csv\n"), 0o600))

	entries, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].URL, "file://")

	source, err := NewSource(entries)
	require.NoError(t, err)

	columns, err := source.DatasetColumns(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, []string{"order_no", "total", "customer"}, columns.Names())

	_, err = source.DatasetColumns(context.Background(), 13)
	require.ErrorIs(t, err, schema.ErrDatasetNotFound)

	require.Error(t, source.Register(Entry{ID: 0, URL: "x.csv"}))
	require.Error(t, source.Register(Entry{ID: 4}))
}
