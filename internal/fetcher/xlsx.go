package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/atlas-cli/internal/table"
)

// XLSXOptions configures XLSX table parsing.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSXTable parses one worksheet into a record set with the declared
// schema. The first row is the header; names match case-insensitively
// and every schema column must appear, else *table.SchemaError.
func ReadXLSXTable(path, name string, schema table.Schema, opts XLSXOptions) (*table.Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open file %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: %s: empty sheet, header required", name)
	}

	header := rowToStrings(sheet.Rows[0])
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	positions := make([]int, len(schema))
	for i, col := range schema {
		pos, ok := colIdx[strings.ToLower(col.Name)]
		if !ok {
			return nil, &table.SchemaError{Table: name, Column: col.Name}
		}
		positions[i] = pos
	}

	tbl := table.New(name, append(table.Schema(nil), schema...))
	for _, sheetRow := range sheet.Rows[1:] {
		cells := rowToStrings(sheetRow)
		row := make(table.Row, len(schema))
		for i, col := range schema {
			pos := positions[i]
			if pos >= len(cells) {
				row[i] = table.Undefined()
				continue
			}
			row[i] = parseCSVCell(strings.TrimSpace(cells[pos]), col.Type)
		}
		if err := tbl.Append(row); err != nil {
			return nil, err
		}
	}

	return tbl, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
