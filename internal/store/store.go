package store

import (
	"context"

	"github.com/sells-group/atlas-cli/internal/model"
)

// DatasetFilter specifies criteria for listing datasets.
type DatasetFilter struct {
	Format model.DatasetFormat `json:"format,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// LayerFilter specifies criteria for listing rendered layers.
type LayerFilter struct {
	Metric string `json:"metric,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the dataset catalog.
// Get methods return (nil, nil) when the record does not exist.
type Store interface {
	// Datasets
	UpsertDataset(ctx context.Context, d model.Dataset) (*model.Dataset, error)
	GetDataset(ctx context.Context, name string) (*model.Dataset, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]model.Dataset, error)
	DeleteDataset(ctx context.Context, name string) error

	// Dataset rows
	ReplaceRows(ctx context.Context, datasetID string, rows []model.DatasetRow) (int64, error)

	// Layers
	SaveLayer(ctx context.Context, l model.Layer) (*model.Layer, error)
	GetLayer(ctx context.Context, name string) (*model.Layer, error)
	ListLayers(ctx context.Context, filter LayerFilter) ([]model.Layer, error)
	DeleteLayer(ctx context.Context, name string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
