package render

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/table"
)

// ClassifiedCollection builds a GeoJSON feature collection for a classified
// layer. Each feature carries the row's defined attributes plus "bucket"
// and "fill" properties for attribute-driven styling. buckets is parallel
// to the table's rows; colors holds one hex color per bucket. Rows whose
// key has no geometry are skipped.
func ClassifiedCollection(t *table.Table, keyColumn string, geoms map[string]geom.T, buckets []int, colors []string) (*geojson.FeatureCollection, error) {
	keyIdx, ok := t.Schema.Index(keyColumn)
	if !ok {
		return nil, &table.SchemaError{Table: t.Name, Column: keyColumn}
	}
	if len(buckets) != t.Len() {
		return nil, eris.Errorf("render: %d bucket assignments for %d rows", len(buckets), t.Len())
	}

	fc := &geojson.FeatureCollection{}
	skipped := 0
	for i, row := range t.Rows {
		key, isStr := row[keyIdx].Text()
		if !isStr {
			skipped++
			continue
		}
		g, found := geoms[key]
		if !found || g == nil {
			skipped++
			continue
		}

		b := buckets[i]
		if b < 0 || b >= len(colors) {
			return nil, eris.Errorf("render: bucket index %d out of range for %d colors", b, len(colors))
		}

		props := rowProperties(t, row)
		props["bucket"] = b
		props["fill"] = colors[b]

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         key,
			Geometry:   g,
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Warn("render: rows without geometry skipped",
			zap.String("table", t.Name),
			zap.Int("skipped", skipped),
		)
	}

	return fc, nil
}

// OverlayCollection builds an unclassified GeoJSON feature collection,
// used for point layers drawn on top of a choropleth.
func OverlayCollection(t *table.Table, keyColumn string, geoms map[string]geom.T) (*geojson.FeatureCollection, error) {
	keyIdx, ok := t.Schema.Index(keyColumn)
	if !ok {
		return nil, &table.SchemaError{Table: t.Name, Column: keyColumn}
	}

	fc := &geojson.FeatureCollection{}
	for _, row := range t.Rows {
		key, isStr := row[keyIdx].Text()
		if !isStr {
			continue
		}
		g, found := geoms[key]
		if !found || g == nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         key,
			Geometry:   g,
			Properties: rowProperties(t, row),
		})
	}
	return fc, nil
}

// rowProperties converts a row's defined cells to a GeoJSON property map.
// Undefined cells are omitted rather than emitted as null or zero.
func rowProperties(t *table.Table, row table.Row) map[string]interface{} {
	props := make(map[string]interface{}, len(row))
	for i, col := range t.Schema {
		v := row[i]
		if !v.Defined() {
			continue
		}
		if f, ok := v.Float(); ok {
			props[col.Name] = f
			continue
		}
		if s, ok := v.Text(); ok {
			props[col.Name] = s
		}
	}
	return props
}
