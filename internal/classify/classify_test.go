package classify

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantileEqualCounts(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	res, err := Quantile(values, 4)
	require.NoError(t, err)

	counts := make([]int, 4)
	for _, b := range res.Buckets {
		counts[b]++
	}
	assert.Equal(t, []int{2, 2, 2, 2}, counts)
}

func TestQuantileMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.Float64() * 1000
	}

	res, err := Quantile(values, 7)
	require.NoError(t, err)

	type pair struct {
		v float64
		b int
	}
	pairs := make([]pair, len(values))
	for i, v := range values {
		pairs[i] = pair{v: v, b: res.Buckets[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

	for i := 1; i < len(pairs); i++ {
		assert.GreaterOrEqual(t, pairs[i].b, pairs[i-1].b,
			"bucket index must never decrease as value increases")
	}
}

func TestQuantileBreaksCoverRange(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
	}{
		{name: "uniform", values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, n: 5},
		{name: "skewed", values: []float64{1, 1, 1, 1, 1, 2, 3, 100}, n: 4},
		{name: "single value", values: []float64{7}, n: 3},
		{name: "two values five buckets", values: []float64{1, 2}, n: 5},
		{name: "negatives", values: []float64{-10, -5, 0, 5, 10}, n: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Quantile(tt.values, tt.n)
			require.NoError(t, err)
			require.Len(t, res.Breaks, tt.n+1)

			sorted := append([]float64(nil), tt.values...)
			sort.Float64s(sorted)

			assert.Equal(t, sorted[0], res.Breaks[0], "breaks start at min")
			assert.Equal(t, sorted[len(sorted)-1], res.Breaks[tt.n], "breaks end at max")
			for i := 1; i < len(res.Breaks); i++ {
				assert.LessOrEqual(t, res.Breaks[i-1], res.Breaks[i], "breaks are non-decreasing")
			}
			for _, b := range res.Buckets {
				assert.GreaterOrEqual(t, b, 0)
				assert.Less(t, b, tt.n)
			}
		})
	}
}

func TestQuantileIdenticalValuesShareBucket(t *testing.T) {
	values := []float64{10, 3, 10, 7, 10, 1}
	res, err := Quantile(values, 3)
	require.NoError(t, err)

	assert.Equal(t, res.Buckets[0], res.Buckets[2])
	assert.Equal(t, res.Buckets[0], res.Buckets[4])
}

func TestQuantileAllIdenticalFallIntoBucketZero(t *testing.T) {
	res, err := Quantile([]float64{5, 5, 5, 5}, 4)
	require.NoError(t, err)
	for _, b := range res.Buckets {
		assert.Equal(t, 0, b)
	}
}

func TestQuantileSingleBucket(t *testing.T) {
	res, err := Quantile([]float64{3, 1, 4, 1, 5}, 1)
	require.NoError(t, err)
	for _, b := range res.Buckets {
		assert.Equal(t, 0, b)
	}
	assert.Equal(t, []float64{1, 5}, res.Breaks)
}

func TestQuantileEmptyInput(t *testing.T) {
	_, err := Quantile(nil, 5)

	var emptyErr *EmptyInputError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, 5, emptyErr.Buckets)
}

func TestQuantileInvalidBucketCount(t *testing.T) {
	_, err := Quantile([]float64{1, 2}, 0)
	assert.Error(t, err)

	var emptyErr *EmptyInputError
	assert.False(t, errors.As(err, &emptyErr))
}

func TestAssignClampsOutOfRange(t *testing.T) {
	res, err := Quantile([]float64{10, 20, 30, 40}, 2)
	require.NoError(t, err)

	assert.Equal(t, 0, Assign(res.Breaks, -100))
	assert.Equal(t, 1, Assign(res.Breaks, 1e9))
}
