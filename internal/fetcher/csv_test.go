package fetcher

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/table"
)

var popSchema = table.Schema{
	{Name: "iso_a3", Type: table.TypeString},
	{Name: "pop", Type: table.TypeNumber},
}

func TestReadCSVTable(t *testing.T) {
	input := "iso_a3,name,pop\nFRA,France,67000000\nDEU,Germany,83000000\nMCO,Monaco,\n"

	tbl, err := ReadCSVTable(strings.NewReader(input), "population", popSchema, CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"iso_a3", "pop"}, tbl.Schema.Names())

	v, err := tbl.Value(1, "pop")
	require.NoError(t, err)
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 83000000.0, f)

	// Monaco's empty cell is undefined.
	v, err = tbl.Value(2, "pop")
	require.NoError(t, err)
	assert.False(t, v.Defined())
}

func TestReadCSVTableHeaderMatching(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "case insensitive header", input: "ISO_A3,POP\nFRA,1\n"},
		{name: "padded header", input: " iso_a3 , pop \nFRA,1\n"},
		{name: "reordered columns", input: "pop,iso_a3\n1,FRA\n"},
		{name: "missing schema column", input: "iso_a3,population\nFRA,1\n", wantErr: true},
		{name: "empty input", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSVTable(strings.NewReader(tt.input), "t", popSchema, CSVOptions{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			v, verr := tbl.Value(0, "iso_a3")
			require.NoError(t, verr)
			s, _ := v.Text()
			assert.Equal(t, "FRA", s)
		})
	}
}

func TestReadCSVTableMissingColumnIsSchemaError(t *testing.T) {
	_, err := ReadCSVTable(strings.NewReader("a,b\n1,2\n"), "ds", popSchema, CSVOptions{})

	var schemaErr *table.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "ds", schemaErr.Table)
	assert.Equal(t, "iso_a3", schemaErr.Column)
}

func TestReadCSVTableOptions(t *testing.T) {
	input := "# comment line\niso_a3;pop\nFRA;42\n"

	tbl, err := ReadCSVTable(strings.NewReader(input), "t", popSchema, CSVOptions{
		Delimiter: ';',
		Comment:   '#',
	})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	v, err := tbl.Value(0, "pop")
	require.NoError(t, err)
	f, _ := v.Float()
	assert.Equal(t, 42.0, f)
}

func TestReadCSVTableRaggedRows(t *testing.T) {
	input := "iso_a3,pop\nFRA\n"

	tbl, err := ReadCSVTable(strings.NewReader(input), "t", popSchema, CSVOptions{})
	require.NoError(t, err)

	v, err := tbl.Value(0, "pop")
	require.NoError(t, err)
	assert.False(t, v.Defined())
}
