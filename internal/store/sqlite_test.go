package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testDataset(name string) model.Dataset {
	return model.Dataset{
		Name:      name,
		Format:    model.FormatShapefile,
		Source:    "https://naturalearthdata.com/ne_110m_admin_0_countries.zip",
		KeyColumn: "iso_a3",
		RowCount:  177,
	}
}

// --- Datasets ---

func TestSQLite_UpsertDataset_And_GetDataset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "countries", d.Name)
	assert.Equal(t, model.FormatShapefile, d.Format)
	assert.False(t, d.ImportedAt.IsZero())

	fetched, err := st.GetDataset(ctx, "countries")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, d.ID, fetched.ID)
	assert.Equal(t, "iso_a3", fetched.KeyColumn)
	assert.Equal(t, 177, fetched.RowCount)
}

func TestSQLite_UpsertDataset_ReimportKeepsID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	updated := testDataset("countries")
	updated.RowCount = 258
	second, err := st.UpsertDataset(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 258, second.RowCount)
}

func TestSQLite_UpsertDataset_InvalidFormat(t *testing.T) {
	st := newTestSQLiteStore(t)

	d := testDataset("bad")
	d.Format = "geojson"
	_, err := st.UpsertDataset(context.Background(), d)
	assert.Error(t, err)
}

func TestSQLite_GetDataset_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	d, err := st.GetDataset(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSQLite_ListDatasets(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	csv := testDataset("population")
	csv.Format = model.FormatCSV
	_, err = st.UpsertDataset(ctx, csv)
	require.NoError(t, err)

	all, err := st.ListDatasets(ctx, DatasetFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	shapefiles, err := st.ListDatasets(ctx, DatasetFilter{Format: model.FormatShapefile, Limit: 10})
	require.NoError(t, err)
	require.Len(t, shapefiles, 1)
	assert.Equal(t, "countries", shapefiles[0].Name)
}

func TestSQLite_DeleteDataset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	_, err = st.ReplaceRows(ctx, d.ID, []model.DatasetRow{
		{Key: "FRA", Attrs: map[string]any{"pop": 67000000.0}},
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteDataset(ctx, "countries"))

	fetched, err := st.GetDataset(ctx, "countries")
	require.NoError(t, err)
	assert.Nil(t, fetched)

	err = st.DeleteDataset(ctx, "countries")
	assert.Error(t, err)
}

// --- Dataset rows ---

func TestSQLite_ReplaceRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	n, err := st.ReplaceRows(ctx, d.ID, []model.DatasetRow{
		{Key: "FRA", Attrs: map[string]any{"pop": 67000000.0}},
		{Key: "DEU", Attrs: map[string]any{"pop": 83000000.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// A second import replaces, not appends.
	n, err = st.ReplaceRows(ctx, d.ID, []model.DatasetRow{
		{Key: "FRA", Attrs: map[string]any{"pop": 68000000.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_ReplaceRows_WithGeometry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	n, err := st.ReplaceRows(ctx, d.ID, []model.DatasetRow{
		{Key: "FRA", Attrs: map[string]any{"pop": 67000000.0}, Geom: []byte{0x01, 0x01, 0x00, 0x00, 0x20}},
		{Key: "DEU", Attrs: map[string]any{"pop": 83000000.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_ReplaceRows_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, testDataset("countries"))
	require.NoError(t, err)

	n, err := st.ReplaceRows(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// --- Layers ---

func testLayer(name string) model.Layer {
	return model.Layer{
		Name:    name,
		Metric:  "density",
		Palette: "ylorrd",
		Buckets: 5,
		Breaks:  []float64{1, 10, 50, 100, 500, 1000},
		GeoJSON: json.RawMessage(`{"type":"FeatureCollection","features":[]}`),
		Legend:  json.RawMessage(`{"metric":"density","entries":[]}`),
	}
}

func TestSQLite_SaveLayer_And_GetLayer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l, err := st.SaveLayer(ctx, testLayer("world-density"))
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.RenderedAt.IsZero())

	fetched, err := st.GetLayer(ctx, "world-density")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "density", fetched.Metric)
	assert.Equal(t, []float64{1, 10, 50, 100, 500, 1000}, fetched.Breaks)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(fetched.GeoJSON))
}

func TestSQLite_SaveLayer_RerenderKeepsID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.SaveLayer(ctx, testLayer("world-density"))
	require.NoError(t, err)

	updated := testLayer("world-density")
	updated.Palette = "blues"
	second, err := st.SaveLayer(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "blues", second.Palette)
}

func TestSQLite_GetLayer_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	l, err := st.GetLayer(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestSQLite_ListLayers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveLayer(ctx, testLayer("world-density"))
	require.NoError(t, err)

	gdp := testLayer("world-gdp")
	gdp.Metric = "gdp_per_capita"
	_, err = st.SaveLayer(ctx, gdp)
	require.NoError(t, err)

	all, err := st.ListLayers(ctx, LayerFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Listing omits the GeoJSON payload.
	assert.Nil(t, all[0].GeoJSON)

	byMetric, err := st.ListLayers(ctx, LayerFilter{Metric: "density", Limit: 10})
	require.NoError(t, err)
	require.Len(t, byMetric, 1)
	assert.Equal(t, "world-density", byMetric[0].Name)
}

func TestSQLite_DeleteLayer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveLayer(ctx, testLayer("world-density"))
	require.NoError(t, err)

	require.NoError(t, st.DeleteLayer(ctx, "world-density"))

	err = st.DeleteLayer(ctx, "world-density")
	assert.Error(t, err)
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate was already called in newTestSQLiteStore; calling again should not error.
	err := st.Migrate(context.Background())
	require.NoError(t, err)
}
