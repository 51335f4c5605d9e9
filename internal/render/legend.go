package render

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// LegendEntry describes one bucket for display: its value range, color,
// and how many records fell into it.
type LegendEntry struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Color string  `json:"color"`
	Count int     `json:"count"`
	Label string  `json:"label"`
}

// Legend is the display companion to a classified layer.
type Legend struct {
	Metric  string        `json:"metric"`
	Palette string        `json:"palette"`
	Entries []LegendEntry `json:"entries"`
}

// BuildLegend assembles a legend from quantile breaks, one color per
// bucket, and the per-record bucket assignments.
func BuildLegend(metric, palette string, breaks []float64, colors []string, buckets []int) (*Legend, error) {
	n := len(breaks) - 1
	if n < 1 {
		return nil, eris.Errorf("render: need at least 2 breaks, got %d", len(breaks))
	}
	if len(colors) != n {
		return nil, eris.Errorf("render: %d buckets need %d colors, got %d", n, n, len(colors))
	}

	counts := make([]int, n)
	for _, b := range buckets {
		if b < 0 || b >= n {
			return nil, eris.Errorf("render: bucket index %d out of range [0,%d)", b, n)
		}
		counts[b]++
	}

	legend := &Legend{Metric: metric, Palette: palette, Entries: make([]LegendEntry, n)}
	for i := 0; i < n; i++ {
		legend.Entries[i] = LegendEntry{
			From:  breaks[i],
			To:    breaks[i+1],
			Color: colors[i],
			Count: counts[i],
			Label: fmt.Sprintf("%s - %s", trimFloat(breaks[i]), trimFloat(breaks[i+1])),
		}
	}
	return legend, nil
}

// trimFloat renders a break value without trailing float noise.
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
