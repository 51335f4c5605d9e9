package fetcher

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/atlas-cli/internal/table"
)

func writeTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)

	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSXTable(t *testing.T) {
	path := writeTestXLSX(t, "data", [][]string{
		{"iso_a3", "pop"},
		{"FRA", "67000000"},
		{"MCO", ""},
	})

	tbl, err := ReadXLSXTable(path, "population", popSchema, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	v, err := tbl.Value(0, "pop")
	require.NoError(t, err)
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 67000000.0, f)

	v, err = tbl.Value(1, "pop")
	require.NoError(t, err)
	assert.False(t, v.Defined())
}

func TestReadXLSXTableBySheetName(t *testing.T) {
	path := writeTestXLSX(t, "attributes", [][]string{
		{"iso_a3", "pop"},
		{"DEU", "83000000"},
	})

	tbl, err := ReadXLSXTable(path, "t", popSchema, XLSXOptions{SheetName: "attributes"})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = ReadXLSXTable(path, "t", popSchema, XLSXOptions{SheetName: "missing"})
	assert.Error(t, err)
}

func TestReadXLSXTableMissingColumn(t *testing.T) {
	path := writeTestXLSX(t, "data", [][]string{
		{"country", "population"},
		{"FRA", "1"},
	})

	_, err := ReadXLSXTable(path, "ds", popSchema, XLSXOptions{})
	var schemaErr *table.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "iso_a3", schemaErr.Column)
}

func TestReadXLSXTableSheetIndexOutOfRange(t *testing.T) {
	path := writeTestXLSX(t, "only", [][]string{{"iso_a3", "pop"}})

	_, err := ReadXLSXTable(path, "t", popSchema, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}
