// Package render turns a classified record set into display artifacts:
// bucket colors, a legend, and GeoJSON feature collections.
package render

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Sequential color ramps (light to dark), 9 steps each. Hex values follow
// the ColorBrewer sequential schemes commonly used for choropleths.
var palettes = map[string][]string{
	"ylorrd": {
		"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c",
		"#fc4e2a", "#e31a1c", "#bd0026", "#800026",
	},
	"blues": {
		"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6",
		"#4292c6", "#2171b5", "#08519c", "#08306b",
	},
	"greens": {
		"#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476",
		"#41ab5d", "#238b45", "#006d2c", "#00441b",
	},
	"purples": {
		"#fcfbfd", "#efedf5", "#dadaeb", "#bcbddc", "#9e9ac8",
		"#807dba", "#6a51a3", "#54278f", "#3f007d",
	},
}

// DefaultPalette is used when config and flags leave the palette unset.
const DefaultPalette = "ylorrd"

// Palettes returns the available palette names.
func Palettes() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Colors returns n colors sampled evenly from the named ramp, light to
// dark, one per bucket.
func Colors(palette string, n int) ([]string, error) {
	ramp, ok := palettes[strings.ToLower(palette)]
	if !ok {
		return nil, eris.Errorf("render: unknown palette %q (have %s)",
			palette, strings.Join(Palettes(), ", "))
	}
	if n < 1 {
		return nil, eris.Errorf("render: color count must be >= 1, got %d", n)
	}
	if n > len(ramp) {
		return nil, eris.Errorf("render: palette %q supports at most %d buckets, got %d",
			palette, len(ramp), n)
	}

	out := make([]string, n)
	if n == 1 {
		out[0] = ramp[len(ramp)/2]
		return out, nil
	}
	for i := 0; i < n; i++ {
		out[i] = ramp[i*(len(ramp)-1)/(n-1)]
	}
	return out, nil
}
