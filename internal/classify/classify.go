// Package classify bins numeric values into ordered quantile buckets for
// attribute-driven map styling.
package classify

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
)

// EmptyInputError reports a classification attempt over zero values.
// Callers are expected to filter undefined cells first; reaching this
// error means every record's metric was undefined.
type EmptyInputError struct {
	Buckets int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("classify: no values to classify into %d buckets", e.Buckets)
}

// Result holds the bucket assignment per input value plus the boundary
// values for legend construction.
type Result struct {
	// Buckets[i] is the bucket index of the i-th input value, in [0, n-1].
	Buckets []int
	// Breaks holds n+1 monotonic boundary values covering [min, max].
	// Bucket 0 covers [Breaks[0], Breaks[1]]; bucket i>0 covers
	// (Breaks[i], Breaks[i+1]].
	Breaks []float64
}

// Quantile assigns each value to one of n buckets whose boundaries are
// empirical quantiles of the input, so buckets hold near-equal counts.
//
// Assignment is a function of the value alone: identical values always
// land in the same bucket, even when that leaves other buckets short or
// empty. Higher values never map to a lower bucket. When every value is
// identical, everything falls into bucket 0.
func Quantile(values []float64, n int) (*Result, error) {
	if n < 1 {
		return nil, eris.Errorf("classify: bucket count must be >= 1, got %d", n)
	}
	if len(values) == 0 {
		return nil, &EmptyInputError{Buckets: n}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	breaks := make([]float64, n+1)
	breaks[0] = sorted[0]
	breaks[n] = sorted[len(sorted)-1]
	for j := 1; j < n; j++ {
		// Upper boundary of bucket j-1: the ceil(j*N/n)-th smallest value.
		idx := (j*len(sorted)+n-1)/n - 1
		if idx < 0 {
			idx = 0
		}
		breaks[j] = sorted[idx]
	}

	res := &Result{Breaks: breaks, Buckets: make([]int, len(values))}
	for i, v := range values {
		res.Buckets[i] = Assign(breaks, v)
	}
	return res, nil
}

// Assign returns the bucket index for a value given quantile breaks as
// produced by Quantile. Values below the first break clamp to bucket 0
// and values above the last clamp to the top bucket, so breaks computed
// on one dataset can classify another.
func Assign(breaks []float64, v float64) int {
	n := len(breaks) - 1
	for i := 0; i < n-1; i++ {
		if v <= breaks[i+1] {
			return i
		}
	}
	return n - 1
}
