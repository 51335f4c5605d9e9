// Package shape loads shapefile layers into typed record sets with their
// geometries kept alongside, keyed by the layer's entity key.
package shape

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/table"
)

// LayerSpec describes a known shapefile layer: its entity key and the
// DBF attribute columns carried into the record set. Attribute names are
// matched case-insensitively against the DBF header.
type LayerSpec struct {
	Name    string
	Key     string
	Columns []table.Column
}

// Schema returns the layer's table schema.
func (s LayerSpec) Schema() table.Schema {
	return append(table.Schema(nil), s.Columns...)
}

// Layers lists the built-in Natural Earth layer specs. Attribute names
// follow the Natural Earth DBF headers.
var Layers = map[string]LayerSpec{
	"countries": {
		Name: "countries",
		Key:  "iso_a3",
		Columns: []table.Column{
			{Name: "iso_a3", Type: table.TypeString},
			{Name: "name", Type: table.TypeString},
			{Name: "continent", Type: table.TypeString},
			{Name: "subregion", Type: table.TypeString},
			{Name: "pop_est", Type: table.TypeNumber},
			{Name: "gdp_md", Type: table.TypeNumber},
		},
	},
	"airports": {
		Name: "airports",
		Key:  "iata_code",
		Columns: []table.Column{
			{Name: "iata_code", Type: table.TypeString},
			{Name: "name", Type: table.TypeString},
			{Name: "type", Type: table.TypeString},
			{Name: "wikipedia", Type: table.TypeString},
		},
	},
	"places": {
		Name: "places",
		Key:  "name",
		Columns: []table.Column{
			{Name: "name", Type: table.TypeString},
			{Name: "sov0name", Type: table.TypeString},
			{Name: "adm0cap", Type: table.TypeNumber},
			{Name: "pop_max", Type: table.TypeNumber},
		},
	},
}

// Spec resolves a layer spec by name.
func Spec(name string) (LayerSpec, error) {
	spec, ok := Layers[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(Layers))
		for n := range Layers {
			names = append(names, n)
		}
		sort.Strings(names)
		return LayerSpec{}, eris.Errorf("shape: unknown layer %q (have %s)",
			name, strings.Join(names, ", "))
	}
	return spec, nil
}
