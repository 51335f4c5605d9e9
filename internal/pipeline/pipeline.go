// Package pipeline runs the attribute-mapping pass: left-join secondary
// attribute tables onto a primary layer, derive a numeric metric, drop
// undefined rows, and classify the rest into quantile buckets.
package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/classify"
	"github.com/sells-group/atlas-cli/internal/table"
)

// Options configures one pipeline run. Everything is explicit per call;
// there is no process-wide classification state.
type Options struct {
	// Key is the shared join column across the primary and all
	// secondary tables.
	Key string
	// FoldKeys normalizes key spelling (case, diacritics, punctuation)
	// on every table before joining.
	FoldKeys bool
	// Formula computes the metric column from the merged table.
	Formula table.Formula
	// Buckets is the quantile bucket count, >= 1.
	Buckets int
}

// Layer is a classified record set ready for rendering. Rows, Values,
// and Buckets are parallel; undefined-metric rows are already filtered
// out.
type Layer struct {
	Table   *table.Table
	Metric  string
	Values  []float64
	Buckets []int
	Breaks  []float64
}

// Run executes join, derive, filter, and classify as one deterministic
// in-memory pass. The inputs are not modified. Schema problems surface
// as *table.SchemaError; an all-undefined metric surfaces as
// *classify.EmptyInputError.
func Run(primary *table.Table, secondaries []*table.Table, opts Options) (*Layer, error) {
	if opts.Key == "" {
		return nil, eris.New("pipeline: join key is required")
	}
	if opts.Buckets < 1 {
		return nil, eris.Errorf("pipeline: bucket count must be >= 1, got %d", opts.Buckets)
	}

	work := primary
	joinTables := secondaries
	if opts.FoldKeys {
		work = copyTable(primary)
		if err := table.FoldKeys(work, opts.Key); err != nil {
			return nil, err
		}
		joinTables = make([]*table.Table, len(secondaries))
		for i, s := range secondaries {
			folded := copyTable(s)
			if err := table.FoldKeys(folded, opts.Key); err != nil {
				return nil, err
			}
			joinTables[i] = folded
		}
	}

	merged, err := table.JoinAll(work, joinTables, opts.Key)
	if err != nil {
		return nil, err
	}

	derived, err := table.Derive(merged, opts.Formula)
	if err != nil {
		return nil, err
	}

	defined, err := table.FilterDefined(derived, opts.Formula.Result)
	if err != nil {
		return nil, err
	}

	dropped := derived.Len() - defined.Len()
	if dropped > 0 {
		zap.L().Info("pipeline: rows with undefined metric excluded",
			zap.String("metric", opts.Formula.Result),
			zap.Int("dropped", dropped),
			zap.Int("kept", defined.Len()),
		)
	}

	values, err := metricValues(defined, opts.Formula.Result)
	if err != nil {
		return nil, err
	}

	res, err := classify.Quantile(values, opts.Buckets)
	if err != nil {
		return nil, err
	}

	return &Layer{
		Table:   defined,
		Metric:  opts.Formula.Result,
		Values:  values,
		Buckets: res.Buckets,
		Breaks:  res.Breaks,
	}, nil
}

// metricValues extracts the metric column as floats. Every cell is
// defined by construction after FilterDefined.
func metricValues(t *table.Table, column string) ([]float64, error) {
	cells, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(cells))
	for i, c := range cells {
		f, ok := c.Float()
		if !ok {
			return nil, eris.Errorf("pipeline: non-numeric metric cell at row %d", i)
		}
		values[i] = f
	}
	return values, nil
}

// copyTable deep-copies a table so key folding never mutates caller data.
func copyTable(t *table.Table) *table.Table {
	out := table.New(t.Name, append(table.Schema(nil), t.Schema...))
	for _, row := range t.Rows {
		_ = out.Append(append(table.Row(nil), row...))
	}
	return out
}
