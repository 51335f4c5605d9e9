package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/atlas-cli/internal/model"
	"github.com/sells-group/atlas-cli/internal/pipeline"
	"github.com/sells-group/atlas-cli/internal/render"
	"github.com/sells-group/atlas-cli/internal/shape"
	"github.com/sells-group/atlas-cli/internal/table"
)

var (
	renderLayerName string
	renderShpPath   string
	renderSpecName  string
	renderJoins     []string
	renderOverlays  []string
	renderDerive    string
	renderBuckets   int
	renderPalette   string
	renderOutDir    string
	renderNoStore   bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Join, derive, classify, and render a choropleth layer",
	Long: `Loads a boundary shapefile, left-joins attribute tables onto it by the
layer's key column, derives a metric, classifies defined values into
quantile buckets, and writes colored GeoJSON plus a legend.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("render"); err != nil {
			return err
		}

		buckets := renderBuckets
		if buckets == 0 {
			buckets = cfg.Render.Buckets
		}
		palette := renderPalette
		if palette == "" {
			palette = cfg.Render.Palette
		}
		outDir := renderOutDir
		if outDir == "" {
			outDir = cfg.Render.OutDir
		}

		formula, err := parseDerive(renderDerive)
		if err != nil {
			return err
		}

		spec, err := shape.Spec(renderSpecName)
		if err != nil {
			return err
		}

		primary, geoms, err := shape.Load(renderShpPath, spec)
		if err != nil {
			return err
		}

		secondaries, err := loadJoinTables(ctx, spec.Key, renderJoins)
		if err != nil {
			return err
		}

		layer, err := pipeline.Run(primary, secondaries, pipeline.Options{
			Key:      spec.Key,
			FoldKeys: cfg.Render.FoldKeys,
			Formula:  formula,
			Buckets:  buckets,
		})
		if err != nil {
			return err
		}

		// Key folding rewrites table keys, so fold the geometry index the
		// same way or lookups miss.
		if cfg.Render.FoldKeys {
			geoms = foldGeomKeys(geoms)
		}

		colors, err := render.Colors(palette, buckets)
		if err != nil {
			return err
		}

		legend, err := render.BuildLegend(layer.Metric, palette, layer.Breaks, colors, layer.Buckets)
		if err != nil {
			return err
		}

		fc, err := render.ClassifiedCollection(layer.Table, spec.Key, geoms, layer.Buckets, colors)
		if err != nil {
			return err
		}

		geoJSON, err := json.Marshal(fc)
		if err != nil {
			return eris.Wrap(err, "render: marshal feature collection")
		}
		legendJSON, err := json.Marshal(legend)
		if err != nil {
			return eris.Wrap(err, "render: marshal legend")
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "render: create directory %s", outDir)
		}
		geoPath := filepath.Join(outDir, renderLayerName+".geojson")
		legendPath := filepath.Join(outDir, renderLayerName+".legend.json")
		if err := os.WriteFile(geoPath, geoJSON, 0o644); err != nil {
			return eris.Wrapf(err, "render: write %s", geoPath)
		}
		if err := os.WriteFile(legendPath, legendJSON, 0o644); err != nil {
			return eris.Wrapf(err, "render: write %s", legendPath)
		}

		overlayPaths, err := writeOverlays(renderOverlays, outDir, renderLayerName)
		if err != nil {
			return err
		}

		if !renderNoStore {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			if _, err := st.SaveLayer(ctx, model.Layer{
				Name:         renderLayerName,
				Metric:       layer.Metric,
				Palette:      palette,
				Buckets:      buckets,
				Breaks:       layer.Breaks,
				FeatureCount: layer.Table.Len(),
				GeoJSON:      geoJSON,
				Legend:       legendJSON,
			}); err != nil {
				return err
			}
		}

		zap.L().Info("render complete",
			zap.String("layer", renderLayerName),
			zap.String("metric", layer.Metric),
			zap.Int("features", layer.Table.Len()),
			zap.Int("buckets", buckets),
		)
		fmt.Printf("rendered %s: %d features into %d buckets\n", renderLayerName, layer.Table.Len(), buckets)
		fmt.Println(geoPath)
		fmt.Println(legendPath)
		for _, p := range overlayPaths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderLayerName, "name", "", "output layer name (required)")
	renderCmd.Flags().StringVar(&renderShpPath, "shp", "", "primary boundary shapefile (required)")
	renderCmd.Flags().StringVar(&renderSpecName, "layer", "countries", "shapefile layer spec")
	renderCmd.Flags().StringArrayVar(&renderJoins, "join", nil, "attribute table to join, as path=col1,col2")
	renderCmd.Flags().StringArrayVar(&renderOverlays, "overlay", nil, "point layer to emit on top, as layerspec=path.shp")
	renderCmd.Flags().StringVar(&renderDerive, "derive", "", "metric formula, e.g. density=pop_est/area_km2 (required)")
	renderCmd.Flags().IntVar(&renderBuckets, "buckets", 0, "quantile bucket count (default from config)")
	renderCmd.Flags().StringVar(&renderPalette, "palette", "", "color palette (default from config)")
	renderCmd.Flags().StringVar(&renderOutDir, "out", "", "output directory (default from config)")
	renderCmd.Flags().BoolVar(&renderNoStore, "no-store", false, "skip recording the layer in the catalog")
	_ = renderCmd.MarkFlagRequired("name")
	_ = renderCmd.MarkFlagRequired("shp")
	_ = renderCmd.MarkFlagRequired("derive")
	rootCmd.AddCommand(renderCmd)
}

// joinSpec is one parsed --join flag value.
type joinSpec struct {
	Path    string
	Columns []string
}

// parseJoin parses "path=col1,col2" into a joinSpec.
func parseJoin(s string) (joinSpec, error) {
	path, cols, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return joinSpec{}, eris.Errorf("render: invalid --join %q, want path=col1,col2", s)
	}
	columns := splitColumns(cols)
	if len(columns) == 0 {
		return joinSpec{}, eris.Errorf("render: --join %q names no columns", s)
	}
	return joinSpec{Path: path, Columns: columns}, nil
}

// parseDerive parses "result=left OP right" with OP one of / * + -.
func parseDerive(s string) (table.Formula, error) {
	result, expr, ok := strings.Cut(s, "=")
	if !ok || result == "" || expr == "" {
		return table.Formula{}, eris.Errorf("render: invalid --derive %q, want result=left/right", s)
	}

	idx := strings.IndexAny(expr, "/*+-")
	if idx <= 0 || idx == len(expr)-1 {
		return table.Formula{}, eris.Errorf("render: no operator in --derive expression %q", expr)
	}

	return table.Formula{
		Result: strings.TrimSpace(result),
		Left:   strings.TrimSpace(expr[:idx]),
		Op:     table.Op(expr[idx : idx+1]),
		Right:  strings.TrimSpace(expr[idx+1:]),
	}, nil
}

// loadJoinTables reads all --join attribute tables concurrently.
func loadJoinTables(ctx context.Context, key string, joins []string) ([]*table.Table, error) {
	specs := make([]joinSpec, len(joins))
	for i, j := range joins {
		spec, err := parseJoin(j)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}

	tables := make([]*table.Table, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			format, err := model.FormatFromPath(spec.Path)
			if err != nil {
				return err
			}
			name := strings.TrimSuffix(filepath.Base(spec.Path), filepath.Ext(spec.Path))
			schema := attributeSchema(key, spec.Columns)
			tbl, err := loadAttributeTable(spec.Path, format, name, schema, "")
			if err != nil {
				return err
			}
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// writeOverlays loads each --overlay point layer and writes it as an
// unclassified feature collection next to the main layer.
func writeOverlays(overlays []string, outDir, layerName string) ([]string, error) {
	paths := make([]string, 0, len(overlays))
	for _, o := range overlays {
		specName, shpPath, ok := strings.Cut(o, "=")
		if !ok || specName == "" || shpPath == "" {
			return nil, eris.Errorf("render: invalid --overlay %q, want layerspec=path.shp", o)
		}
		spec, err := shape.Spec(specName)
		if err != nil {
			return nil, err
		}
		tbl, geoms, err := shape.Load(shpPath, spec)
		if err != nil {
			return nil, err
		}
		fc, err := render.OverlayCollection(tbl, spec.Key, geoms)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(fc)
		if err != nil {
			return nil, eris.Wrapf(err, "render: marshal overlay %s", specName)
		}
		p := filepath.Join(outDir, layerName+"."+specName+".geojson")
		if err := os.WriteFile(p, out, 0o644); err != nil {
			return nil, eris.Wrapf(err, "render: write %s", p)
		}
		zap.L().Info("overlay written", zap.String("layer", specName), zap.Int("features", tbl.Len()))
		paths = append(paths, p)
	}
	return paths, nil
}

// foldGeomKeys rewrites the geometry index with folded keys.
func foldGeomKeys(geoms map[string]geom.T) map[string]geom.T {
	folded := make(map[string]geom.T, len(geoms))
	for k, g := range geoms {
		folded[table.FoldKey(k)] = g
	}
	return folded
}
