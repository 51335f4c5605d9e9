package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/atlas-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog contents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := printDatasets(ctx, st); err != nil {
			return err
		}
		fmt.Println()
		return printLayers(ctx, st)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printDatasets(ctx context.Context, st store.Store) error {
	datasets, err := st.ListDatasets(ctx, store.DatasetFilter{})
	if err != nil {
		return err
	}

	if len(datasets) == 0 {
		fmt.Println("No datasets imported yet")
		return nil
	}

	fmt.Printf("%-20s %-10s %-10s %8s %s\n", "Dataset", "Format", "Key", "Rows", "Imported At")
	fmt.Println(strings.Repeat("-", 72))
	for _, d := range datasets {
		fmt.Printf("%-20s %-10s %-10s %8d %s\n",
			d.Name, d.Format, d.KeyColumn, d.RowCount, d.ImportedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func printLayers(ctx context.Context, st store.Store) error {
	layers, err := st.ListLayers(ctx, store.LayerFilter{})
	if err != nil {
		return err
	}

	if len(layers) == 0 {
		fmt.Println("No layers rendered yet")
		return nil
	}

	fmt.Printf("%-20s %-16s %-10s %8s %9s %s\n", "Layer", "Metric", "Palette", "Buckets", "Features", "Rendered At")
	fmt.Println(strings.Repeat("-", 84))
	for _, l := range layers {
		fmt.Printf("%-20s %-16s %-10s %8d %9d %s\n",
			l.Name, l.Metric, l.Palette, l.Buckets, l.FeatureCount, l.RenderedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
