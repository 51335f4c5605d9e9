package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/fetcher"
	"github.com/sells-group/atlas-cli/internal/model"
	"github.com/sells-group/atlas-cli/internal/shape"
	"github.com/sells-group/atlas-cli/internal/table"
)

var (
	importName    string
	importLayer   string
	importKey     string
	importNumeric string
	importSheet   string
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a shapefile, CSV, or XLSX dataset into the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		format, err := model.FormatFromPath(path)
		if err != nil {
			return err
		}

		name := importName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		tbl, geoms, key, err := loadDatasetTable(path, format, name)
		if err != nil {
			return err
		}

		rows, err := datasetRows(tbl, key, geoms)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := st.UpsertDataset(ctx, model.Dataset{
			Name:      name,
			Format:    format,
			Source:    path,
			KeyColumn: key,
			RowCount:  len(rows),
		})
		if err != nil {
			return err
		}

		n, err := st.ReplaceRows(ctx, d.ID, rows)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("dataset", name),
			zap.String("format", string(format)),
			zap.Int64("rows", n),
		)
		fmt.Printf("imported %s: %d rows (key %s)\n", name, n, key)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "dataset name (default: file basename)")
	importCmd.Flags().StringVar(&importLayer, "layer", "countries", "shapefile layer spec")
	importCmd.Flags().StringVar(&importKey, "key", "", "join key column (required for CSV/XLSX)")
	importCmd.Flags().StringVar(&importNumeric, "numeric", "", "comma-separated numeric columns (CSV/XLSX)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	rootCmd.AddCommand(importCmd)
}

// loadDatasetTable reads the dataset at path into a table, returning the
// table, its geometry index (nil for attribute-only formats), and its
// join key column.
func loadDatasetTable(path string, format model.DatasetFormat, name string) (*table.Table, map[string]geom.T, string, error) {
	switch format {
	case model.FormatShapefile:
		spec, err := shape.Spec(importLayer)
		if err != nil {
			return nil, nil, "", err
		}
		tbl, geoms, err := shape.Load(path, spec)
		if err != nil {
			return nil, nil, "", err
		}
		return tbl, geoms, spec.Key, nil
	case model.FormatCSV, model.FormatXLSX:
		if importKey == "" {
			return nil, nil, "", eris.New("import: --key is required for CSV/XLSX datasets")
		}
		schema := attributeSchema(importKey, splitColumns(importNumeric))
		tbl, err := loadAttributeTable(path, format, name, schema, importSheet)
		if err != nil {
			return nil, nil, "", err
		}
		return tbl, nil, importKey, nil
	}
	return nil, nil, "", eris.Errorf("import: unsupported format %q", format)
}

// loadAttributeTable reads a CSV or XLSX file against an explicit schema.
func loadAttributeTable(path string, format model.DatasetFormat, name string, schema table.Schema, sheet string) (*table.Table, error) {
	switch format {
	case model.FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck

		opts := fetcher.CSVOptions{}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return fetcher.ReadCSVTable(f, name, schema, opts)
	case model.FormatXLSX:
		return fetcher.ReadXLSXTable(path, name, schema, fetcher.XLSXOptions{SheetName: sheet})
	}
	return nil, eris.Errorf("unsupported attribute format %q", format)
}

// attributeSchema builds a schema of one string key plus numeric columns.
func attributeSchema(key string, numeric []string) table.Schema {
	schema := table.Schema{{Name: key, Type: table.TypeString}}
	for _, col := range numeric {
		schema = append(schema, table.Column{Name: col, Type: table.TypeNumber})
	}
	return schema
}

// splitColumns parses a comma-separated column list, dropping blanks.
func splitColumns(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// datasetRows converts a table into catalog rows keyed by the join column.
// Geometries from the index are stored as EWKB alongside their row.
// Duplicate keys keep the first occurrence, matching join semantics:
// Natural Earth marks several territories with the same sentinel code
// (iso_a3 "-99"), so real boundary data repeats keys.
func datasetRows(t *table.Table, key string, geoms map[string]geom.T) ([]model.DatasetRow, error) {
	if !t.Schema.Has(key) {
		return nil, &table.SchemaError{Table: t.Name, Column: key}
	}

	rows := make([]model.DatasetRow, 0, t.Len())
	seen := make(map[string]bool, t.Len())
	for i := range t.Rows {
		k, err := t.Value(i, key)
		if err != nil {
			return nil, err
		}

		attrs := make(map[string]any, len(t.Schema))
		for _, col := range t.Schema {
			if col.Name == key {
				continue
			}
			v, err := t.Value(i, col.Name)
			if err != nil {
				return nil, err
			}
			if f, ok := v.Float(); ok {
				attrs[col.Name] = f
			} else if s, ok := v.Text(); ok {
				attrs[col.Name] = s
			}
		}

		rowKey := cellString(k)
		if seen[rowKey] {
			zap.L().Warn("duplicate key in dataset, keeping first occurrence",
				zap.String("table", t.Name),
				zap.String("key", rowKey),
			)
			continue
		}
		seen[rowKey] = true

		var geomEWKB []byte
		if g, ok := geoms[rowKey]; ok {
			geomEWKB, err = shape.EncodeEWKB(g)
			if err != nil {
				return nil, err
			}
		}

		rows = append(rows, model.DatasetRow{Key: rowKey, Attrs: attrs, Geom: geomEWKB})
	}
	return rows, nil
}

// cellString renders a cell for use as a row key.
func cellString(v table.Value) string {
	if s, ok := v.Text(); ok {
		return s
	}
	if f, ok := v.Float(); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return ""
}
