// Package model defines the catalog types shared by the store and CLI.
package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DatasetFormat identifies the source file format of an imported dataset.
type DatasetFormat string

const (
	FormatShapefile DatasetFormat = "shapefile"
	FormatCSV       DatasetFormat = "csv"
	FormatXLSX      DatasetFormat = "xlsx"
)

// Valid reports whether f is a known format.
func (f DatasetFormat) Valid() bool {
	switch f {
	case FormatShapefile, FormatCSV, FormatXLSX:
		return true
	}
	return false
}

// FormatFromPath infers the dataset format from a file extension.
func FormatFromPath(path string) (DatasetFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return FormatShapefile, nil
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("model: unrecognized dataset extension %q", filepath.Ext(path))
}

// Dataset is one imported source table in the catalog.
type Dataset struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Format     DatasetFormat `json:"format"`
	Source     string        `json:"source"`
	KeyColumn  string        `json:"key_column"`
	RowCount   int           `json:"row_count"`
	ImportedAt time.Time     `json:"imported_at"`
}

// DatasetRow is one attribute row of an imported dataset, keyed by the
// dataset's join column. Geom holds the row's EWKB-encoded geometry for
// shapefile datasets and is nil for attribute-only formats.
type DatasetRow struct {
	Key   string         `json:"key"`
	Attrs map[string]any `json:"attrs"`
	Geom  []byte         `json:"-"`
}
