package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/classify"
	"github.com/sells-group/atlas-cli/internal/table"
)

func buildTable(t *testing.T, name string, schema table.Schema, rows []table.Row) *table.Table {
	t.Helper()
	tbl := table.New(name, schema)
	for _, r := range rows {
		require.NoError(t, tbl.Append(r))
	}
	return tbl
}

// The reference round trip: join, derive density, filter undefined,
// classify into two buckets. A (density 10) and C (density 10) are
// identical values and must never be split across buckets.
func TestRunRoundTrip(t *testing.T) {
	primary := buildTable(t, "entities", table.Schema{
		{Name: "id", Type: table.TypeString},
		{Name: "area", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("A"), table.Num(10)},
		{table.Str("B"), table.Num(0)},
		{table.Str("C"), table.Num(5)},
	})

	secondary := buildTable(t, "population", table.Schema{
		{Name: "id", Type: table.TypeString},
		{Name: "pop", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("A"), table.Num(100)},
		{table.Str("C"), table.Num(50)},
	})

	layer, err := Run(primary, []*table.Table{secondary}, Options{
		Key:     "id",
		Formula: table.Formula{Result: "density", Left: "pop", Right: "area", Op: table.OpDiv},
		Buckets: 2,
	})
	require.NoError(t, err)

	// B is excluded: pop absent and area zero.
	require.Equal(t, 2, layer.Table.Len())
	assert.Equal(t, []float64{10, 10}, layer.Values)

	// Identical densities share a bucket.
	assert.Equal(t, layer.Buckets[0], layer.Buckets[1])
	assert.Len(t, layer.Breaks, 3)
}

func TestRunDropsUndefinedBeforeClassification(t *testing.T) {
	primary := buildTable(t, "countries", table.Schema{
		{Name: "iso", Type: table.TypeString},
		{Name: "area", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("AAA"), table.Num(2)},
		{table.Str("BBB"), table.Num(4)},
		{table.Str("CCC"), table.Num(0)},  // zero denominator
		{table.Str("DDD"), table.Num(8)},  // no secondary match
		{table.Str("EEE"), table.Num(10)},
	})

	secondary := buildTable(t, "pop", table.Schema{
		{Name: "iso", Type: table.TypeString},
		{Name: "pop", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("AAA"), table.Num(20)},
		{table.Str("BBB"), table.Num(80)},
		{table.Str("CCC"), table.Num(30)},
		{table.Str("EEE"), table.Num(500)},
	})

	layer, err := Run(primary, []*table.Table{secondary}, Options{
		Key:     "iso",
		Formula: table.Formula{Result: "density", Left: "pop", Right: "area", Op: table.OpDiv},
		Buckets: 3,
	})
	require.NoError(t, err)

	// CCC (area 0) and DDD (no pop) drop out; boundaries are computed
	// over the three defined densities only.
	assert.Equal(t, 3, layer.Table.Len())
	assert.Equal(t, []float64{10, 20, 50}, layer.Values)
	assert.Equal(t, 10.0, layer.Breaks[0])
	assert.Equal(t, 50.0, layer.Breaks[len(layer.Breaks)-1])
}

func TestRunAllUndefinedIsEmptyInput(t *testing.T) {
	primary := buildTable(t, "p", table.Schema{
		{Name: "id", Type: table.TypeString},
		{Name: "area", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("A"), table.Num(0)},
	})
	secondary := buildTable(t, "s", table.Schema{
		{Name: "id", Type: table.TypeString},
		{Name: "pop", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("A"), table.Num(10)},
	})

	_, err := Run(primary, []*table.Table{secondary}, Options{
		Key:     "id",
		Formula: table.Formula{Result: "density", Left: "pop", Right: "area", Op: table.OpDiv},
		Buckets: 4,
	})

	var emptyErr *classify.EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
}

func TestRunSchemaErrorAborts(t *testing.T) {
	primary := buildTable(t, "p", table.Schema{
		{Name: "id", Type: table.TypeString},
	}, []table.Row{{table.Str("A")}})
	secondary := buildTable(t, "s", table.Schema{
		{Name: "other", Type: table.TypeString},
	}, []table.Row{{table.Str("A")}})

	_, err := Run(primary, []*table.Table{secondary}, Options{
		Key:     "id",
		Formula: table.Formula{Result: "x", Left: "a", Right: "b", Op: table.OpDiv},
		Buckets: 2,
	})

	var schemaErr *table.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "s", schemaErr.Table)
}

func TestRunFoldKeysDoesNotMutateInputs(t *testing.T) {
	primary := buildTable(t, "p", table.Schema{
		{Name: "name", Type: table.TypeString},
		{Name: "area", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("Côte d'Ivoire"), table.Num(10)},
	})
	secondary := buildTable(t, "s", table.Schema{
		{Name: "name", Type: table.TypeString},
		{Name: "pop", Type: table.TypeNumber},
	}, []table.Row{
		{table.Str("Cote d'Ivoire"), table.Num(100)},
	})

	layer, err := Run(primary, []*table.Table{secondary}, Options{
		Key:      "name",
		FoldKeys: true,
		Formula:  table.Formula{Result: "density", Left: "pop", Right: "area", Op: table.OpDiv},
		Buckets:  1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, layer.Table.Len())
	assert.Equal(t, []float64{10}, layer.Values)

	// Caller tables keep their original spelling.
	v, err := primary.Value(0, "name")
	require.NoError(t, err)
	s, _ := v.Text()
	assert.Equal(t, "Côte d'Ivoire", s)
}

func TestRunValidatesOptions(t *testing.T) {
	tbl := buildTable(t, "p", table.Schema{{Name: "id", Type: table.TypeString}}, nil)

	_, err := Run(tbl, nil, Options{Buckets: 2})
	assert.Error(t, err, "missing key")

	_, err = Run(tbl, nil, Options{Key: "id", Buckets: 0})
	assert.Error(t, err, "invalid bucket count")
}
