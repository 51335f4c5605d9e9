package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/db"
	"github.com/sells-group/atlas-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used catalog operations.
var preparedStatements = map[string]string{
	"get_dataset":  `SELECT id, name, format, source, key_column, row_count, imported_at FROM datasets WHERE name = $1`,
	"get_layer":    `SELECT id, name, metric, palette, buckets, breaks, feature_count, geojson, legend, rendered_at FROM layers WHERE name = $1`,
	"delete_layer": `DELETE FROM layers WHERE name = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	format      TEXT NOT NULL,
	source      TEXT NOT NULL,
	key_column  TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	row_key    TEXT NOT NULL,
	attrs      JSONB NOT NULL,
	geom       BYTEA,
	PRIMARY KEY (dataset_id, row_key)
);

CREATE TABLE IF NOT EXISTS layers (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name          TEXT NOT NULL UNIQUE,
	metric        TEXT NOT NULL,
	palette       TEXT NOT NULL,
	buckets       INTEGER NOT NULL,
	breaks        JSONB NOT NULL,
	feature_count INTEGER NOT NULL DEFAULT 0,
	geojson       JSONB NOT NULL,
	legend        JSONB NOT NULL,
	rendered_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_datasets_format ON datasets(format);
CREATE INDEX IF NOT EXISTS idx_dataset_rows_dataset ON dataset_rows(dataset_id);
CREATE INDEX IF NOT EXISTS idx_layers_metric ON layers(metric);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertDataset(ctx context.Context, d model.Dataset) (*model.Dataset, error) {
	if !d.Format.Valid() {
		return nil, eris.Errorf("postgres: invalid dataset format %q", d.Format)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, name, format, source, key_column, row_count, imported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET
		   format = EXCLUDED.format, source = EXCLUDED.source,
		   key_column = EXCLUDED.key_column, row_count = EXCLUDED.row_count,
		   imported_at = EXCLUDED.imported_at`,
		id, d.Name, string(d.Format), d.Source, d.KeyColumn, d.RowCount, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert dataset %s", d.Name)
	}

	return s.GetDataset(ctx, d.Name)
}

func (s *PostgresStore) GetDataset(ctx context.Context, name string) (*model.Dataset, error) {
	var d model.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, format, source, key_column, row_count, imported_at
		 FROM datasets WHERE name = $1`,
		name,
	).Scan(&d.ID, &d.Name, &d.Format, &d.Source, &d.KeyColumn, &d.RowCount, &d.ImportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get dataset %s", name)
	}
	return &d, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]model.Dataset, error) {
	query := `SELECT id, name, format, source, key_column, row_count, imported_at
	          FROM datasets WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Format != "" {
		query += fmt.Sprintf(` AND format = $%d`, argIdx)
		args = append(args, string(filter.Format))
		argIdx++
	}
	query += ` ORDER BY imported_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var datasets []model.Dataset
	for rows.Next() {
		var d model.Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.Format, &d.Source, &d.KeyColumn, &d.RowCount, &d.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		datasets = append(datasets, d)
	}
	return datasets, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dataset %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dataset not found: %s", name)
	}
	return nil
}

// ReplaceRows makes the stored rows for a dataset match the given set.
// A first import goes through the COPY fast path; a re-import upserts the
// batch and prunes keys the new source no longer carries. Callers must
// pass unique row keys.
func (s *PostgresStore) ReplaceRows(ctx context.Context, datasetID string, rows []model.DatasetRow) (int64, error) {
	if len(rows) == 0 {
		if _, err := s.pool.Exec(ctx, `DELETE FROM dataset_rows WHERE dataset_id = $1`, datasetID); err != nil {
			return 0, eris.Wrapf(err, "postgres: clear rows for dataset %s", datasetID)
		}
		return 0, nil
	}

	copyRows := make([][]any, 0, len(rows))
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		attrsJSON, err := json.Marshal(r.Attrs)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal attrs for key %s", r.Key)
		}
		copyRows = append(copyRows, []any{datasetID, r.Key, attrsJSON, r.Geom})
		keys = append(keys, r.Key)
	}

	var existing int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM dataset_rows WHERE dataset_id = $1`, datasetID,
	).Scan(&existing); err != nil {
		return 0, eris.Wrapf(err, "postgres: count rows for dataset %s", datasetID)
	}

	columns := []string{"dataset_id", "row_key", "attrs", "geom"}

	// Nothing stored yet, so nothing can conflict: straight COPY.
	if existing == 0 {
		return db.CopyFrom(ctx, s.pool, "dataset_rows", columns, copyRows)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "dataset_rows",
		Columns:      columns,
		ConflictKeys: []string{"dataset_id", "row_key"},
	}, copyRows)
	if err != nil {
		return 0, err
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM dataset_rows WHERE dataset_id = $1 AND row_key != ALL($2)`,
		datasetID, keys,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: prune stale rows for dataset %s", datasetID)
	}
	return n, nil
}

func (s *PostgresStore) SaveLayer(ctx context.Context, l model.Layer) (*model.Layer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	breaksJSON, err := json.Marshal(l.Breaks)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal breaks")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO layers (id, name, metric, palette, buckets, breaks, feature_count, geojson, legend, rendered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (name) DO UPDATE SET
		   metric = EXCLUDED.metric, palette = EXCLUDED.palette,
		   buckets = EXCLUDED.buckets, breaks = EXCLUDED.breaks,
		   feature_count = EXCLUDED.feature_count, geojson = EXCLUDED.geojson,
		   legend = EXCLUDED.legend, rendered_at = EXCLUDED.rendered_at`,
		id, l.Name, l.Metric, l.Palette, l.Buckets, breaksJSON,
		l.FeatureCount, []byte(l.GeoJSON), []byte(l.Legend), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save layer %s", l.Name)
	}

	return s.GetLayer(ctx, l.Name)
}

func (s *PostgresStore) GetLayer(ctx context.Context, name string) (*model.Layer, error) {
	var l model.Layer
	var breaksJSON, geoJSON, legendJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, metric, palette, buckets, breaks, feature_count, geojson, legend, rendered_at
		 FROM layers WHERE name = $1`,
		name,
	).Scan(&l.ID, &l.Name, &l.Metric, &l.Palette, &l.Buckets, &breaksJSON,
		&l.FeatureCount, &geoJSON, &legendJSON, &l.RenderedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get layer %s", name)
	}

	if err := json.Unmarshal(breaksJSON, &l.Breaks); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal breaks")
	}
	l.GeoJSON = json.RawMessage(geoJSON)
	l.Legend = json.RawMessage(legendJSON)
	return &l, nil
}

// ListLayers returns layer metadata without the GeoJSON payload.
func (s *PostgresStore) ListLayers(ctx context.Context, filter LayerFilter) ([]model.Layer, error) {
	query := `SELECT id, name, metric, palette, buckets, breaks, feature_count, rendered_at
	          FROM layers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Metric != "" {
		query += fmt.Sprintf(` AND metric = $%d`, argIdx)
		args = append(args, filter.Metric)
		argIdx++
	}
	query += ` ORDER BY rendered_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list layers")
	}
	defer rows.Close()

	var layers []model.Layer
	for rows.Next() {
		var l model.Layer
		var breaksJSON []byte
		if err := rows.Scan(&l.ID, &l.Name, &l.Metric, &l.Palette, &l.Buckets, &breaksJSON,
			&l.FeatureCount, &l.RenderedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan layer")
		}
		if err := json.Unmarshal(breaksJSON, &l.Breaks); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal breaks")
		}
		layers = append(layers, l)
	}
	return layers, eris.Wrap(rows.Err(), "postgres: list layers iterate")
}

func (s *PostgresStore) DeleteLayer(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM layers WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete layer %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("layer not found: %s", name)
	}
	return nil
}
