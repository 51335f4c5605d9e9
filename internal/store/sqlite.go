package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/atlas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	format      TEXT NOT NULL,
	source      TEXT NOT NULL,
	key_column  TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	imported_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL REFERENCES datasets(id),
	row_key    TEXT NOT NULL,
	attrs      TEXT NOT NULL,
	geom       BLOB,
	PRIMARY KEY (dataset_id, row_key)
);

CREATE TABLE IF NOT EXISTS layers (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	metric        TEXT NOT NULL,
	palette       TEXT NOT NULL,
	buckets       INTEGER NOT NULL,
	breaks        TEXT NOT NULL,
	feature_count INTEGER NOT NULL DEFAULT 0,
	geojson       TEXT NOT NULL,
	legend        TEXT NOT NULL,
	rendered_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_datasets_format ON datasets(format);
CREATE INDEX IF NOT EXISTS idx_dataset_rows_dataset ON dataset_rows(dataset_id);
CREATE INDEX IF NOT EXISTS idx_layers_metric ON layers(metric);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDataset(ctx context.Context, d model.Dataset) (*model.Dataset, error) {
	if !d.Format.Valid() {
		return nil, eris.Errorf("sqlite: invalid dataset format %q", d.Format)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, name, format, source, key_column, row_count, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   format = excluded.format, source = excluded.source,
		   key_column = excluded.key_column, row_count = excluded.row_count,
		   imported_at = excluded.imported_at`,
		id, d.Name, string(d.Format), d.Source, d.KeyColumn, d.RowCount, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert dataset %s", d.Name)
	}

	// Re-imports keep the original row id, so read the record back.
	return s.GetDataset(ctx, d.Name)
}

func (s *SQLiteStore) GetDataset(ctx context.Context, name string) (*model.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, format, source, key_column, row_count, imported_at
		 FROM datasets WHERE name = ?`,
		name,
	)

	var d model.Dataset
	err := row.Scan(&d.ID, &d.Name, &d.Format, &d.Source, &d.KeyColumn, &d.RowCount, &d.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dataset %s", name)
	}
	return &d, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]model.Dataset, error) {
	query := `SELECT id, name, format, source, key_column, row_count, imported_at
	          FROM datasets WHERE 1=1`
	var args []any

	if filter.Format != "" {
		query += ` AND format = ?`
		args = append(args, string(filter.Format))
	}
	query += ` ORDER BY imported_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var datasets []model.Dataset
	for rows.Next() {
		var d model.Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.Format, &d.Source, &d.KeyColumn, &d.RowCount, &d.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		datasets = append(datasets, d)
	}
	return datasets, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

func (s *SQLiteStore) DeleteDataset(ctx context.Context, name string) error {
	d, err := s.GetDataset(ctx, name)
	if err != nil {
		return err
	}
	if d == nil {
		return eris.Errorf("dataset not found: %s", name)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = ?`, d.ID); err != nil {
		return eris.Wrapf(err, "sqlite: delete rows for dataset %s", name)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, d.ID)
	return eris.Wrapf(err, "sqlite: delete dataset %s", name)
}

func (s *SQLiteStore) ReplaceRows(ctx context.Context, datasetID string, rows []model.DatasetRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = ?`, datasetID); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear rows for dataset %s", datasetID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dataset_rows (dataset_id, row_key, attrs, geom) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range rows {
		attrsJSON, err := json.Marshal(r.Attrs)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal attrs for key %s", r.Key)
		}
		if _, err := stmt.ExecContext(ctx, datasetID, r.Key, string(attrsJSON), r.Geom); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %s", r.Key)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit rows")
	}
	return n, nil
}

func (s *SQLiteStore) SaveLayer(ctx context.Context, l model.Layer) (*model.Layer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	breaksJSON, err := json.Marshal(l.Breaks)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal breaks")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO layers (id, name, metric, palette, buckets, breaks, feature_count, geojson, legend, rendered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   metric = excluded.metric, palette = excluded.palette,
		   buckets = excluded.buckets, breaks = excluded.breaks,
		   feature_count = excluded.feature_count, geojson = excluded.geojson,
		   legend = excluded.legend, rendered_at = excluded.rendered_at`,
		id, l.Name, l.Metric, l.Palette, l.Buckets, string(breaksJSON),
		l.FeatureCount, string(l.GeoJSON), string(l.Legend), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save layer %s", l.Name)
	}

	return s.GetLayer(ctx, l.Name)
}

func (s *SQLiteStore) GetLayer(ctx context.Context, name string) (*model.Layer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, metric, palette, buckets, breaks, feature_count, geojson, legend, rendered_at
		 FROM layers WHERE name = ?`,
		name,
	)

	var l model.Layer
	var breaksJSON, geoJSON, legendJSON string
	err := row.Scan(&l.ID, &l.Name, &l.Metric, &l.Palette, &l.Buckets, &breaksJSON,
		&l.FeatureCount, &geoJSON, &legendJSON, &l.RenderedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get layer %s", name)
	}

	if err := json.Unmarshal([]byte(breaksJSON), &l.Breaks); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal breaks")
	}
	l.GeoJSON = json.RawMessage(geoJSON)
	l.Legend = json.RawMessage(legendJSON)
	return &l, nil
}

// ListLayers returns layer metadata without the GeoJSON payload.
func (s *SQLiteStore) ListLayers(ctx context.Context, filter LayerFilter) ([]model.Layer, error) {
	query := `SELECT id, name, metric, palette, buckets, breaks, feature_count, rendered_at
	          FROM layers WHERE 1=1`
	var args []any

	if filter.Metric != "" {
		query += ` AND metric = ?`
		args = append(args, filter.Metric)
	}
	query += ` ORDER BY rendered_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list layers")
	}
	defer rows.Close()

	var layers []model.Layer
	for rows.Next() {
		var l model.Layer
		var breaksJSON string
		if err := rows.Scan(&l.ID, &l.Name, &l.Metric, &l.Palette, &l.Buckets, &breaksJSON,
			&l.FeatureCount, &l.RenderedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan layer")
		}
		if err := json.Unmarshal([]byte(breaksJSON), &l.Breaks); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal breaks")
		}
		layers = append(layers, l)
	}
	return layers, eris.Wrap(rows.Err(), "sqlite: list layers iterate")
}

func (s *SQLiteStore) DeleteLayer(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM layers WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete layer %s", name)
	}
	return checkRowsAffected(res, "layer", name)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
