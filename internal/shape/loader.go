package shape

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/table"
)

// Load reads a shapefile into a record set plus a key-to-geometry lookup.
// DBF attributes listed in the spec become typed table columns; cells
// that are empty or fail numeric parsing are undefined. Rows without a
// usable geometry stay in the table; only rendering needs the geometry.
//
// The spec's key column must exist in the DBF, else *table.SchemaError.
func Load(shpPath string, spec LayerSpec) (*table.Table, map[string]geom.T, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "shape: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Field name → DBF index, lowercased. DBF headers pad with NULs.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	if _, ok := fieldIdx[strings.ToLower(spec.Key)]; !ok {
		return nil, nil, &table.SchemaError{Table: spec.Name, Column: spec.Key}
	}

	tbl := table.New(spec.Name, spec.Schema())
	geoms := make(map[string]geom.T)
	var noGeom, dupKeys int

	for reader.Next() {
		_, shpShape := reader.Shape()

		row := make(table.Row, 0, len(spec.Columns))
		for _, col := range spec.Columns {
			idx, ok := fieldIdx[strings.ToLower(col.Name)]
			if !ok {
				row = append(row, table.Undefined())
				continue
			}
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			row = append(row, parseCell(raw, col.Type))
		}
		if err := tbl.Append(row); err != nil {
			return nil, nil, err
		}

		key := rowKey(tbl, row, spec.Key)
		if key == "" {
			continue
		}

		g := ToGeom(shpShape)
		if g == nil {
			noGeom++
			continue
		}
		if _, seen := geoms[key]; seen {
			dupKeys++
			continue
		}
		geoms[key] = g
	}

	if noGeom > 0 || dupKeys > 0 {
		zap.L().Debug("shape: geometry anomalies while loading",
			zap.String("layer", spec.Name),
			zap.Int("missing_geometry", noGeom),
			zap.Int("duplicate_keys", dupKeys),
		)
	}

	zap.L().Info("shape: layer loaded",
		zap.String("layer", spec.Name),
		zap.String("path", shpPath),
		zap.Int("rows", tbl.Len()),
		zap.Int("geometries", len(geoms)),
	)

	return tbl, geoms, nil
}

// parseCell converts a raw DBF attribute to a typed cell. Empty strings
// and unparsable numbers are undefined, never zero.
func parseCell(raw string, t table.ColumnType) table.Value {
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

// rowKey extracts a row's key cell as a string; "" means unusable.
func rowKey(t *table.Table, row table.Row, key string) string {
	idx, ok := t.Schema.Index(key)
	if !ok {
		return ""
	}
	s, _ := row[idx].Text()
	return s
}
