package fetcher

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/table"
)

// CSVOptions configures CSV table parsing.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// ReadCSVTable parses a headered CSV stream into a record set with the
// declared schema. Header names are matched case-insensitively; every
// schema column must appear in the header, else *table.SchemaError.
// Empty or unparsable numeric cells are undefined, never zero.
func ReadCSVTable(r io.Reader, name string, schema table.Schema, opts CSVOptions) (*table.Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow ragged rows

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Errorf("csv: %s: empty input, header required", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: %s: read header", name)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	// Positions of schema columns within the CSV rows.
	positions := make([]int, len(schema))
	for i, col := range schema {
		pos, ok := colIdx[strings.ToLower(col.Name)]
		if !ok {
			return nil, &table.SchemaError{Table: name, Column: col.Name}
		}
		positions[i] = pos
	}

	tbl := table.New(name, append(table.Schema(nil), schema...))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: %s: read row", name)
		}

		row := make(table.Row, len(schema))
		for i, col := range schema {
			pos := positions[i]
			if pos >= len(record) {
				row[i] = table.Undefined()
				continue
			}
			row[i] = parseCSVCell(strings.TrimSpace(record[pos]), col.Type)
		}
		if err := tbl.Append(row); err != nil {
			return nil, err
		}
	}

	return tbl, nil
}

func parseCSVCell(raw string, t table.ColumnType) table.Value {
	if raw == "" {
		return table.Undefined()
	}
	switch t {
	case table.TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.Undefined()
		}
		return table.Num(f)
	default:
		return table.Str(raw)
	}
}
