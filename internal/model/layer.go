package model

import (
	"encoding/json"
	"time"
)

// Layer is a rendered choropleth layer: the classified GeoJSON output
// plus the legend and classification parameters that produced it.
type Layer struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Metric       string          `json:"metric"`
	Palette      string          `json:"palette"`
	Buckets      int             `json:"buckets"`
	Breaks       []float64       `json:"breaks"`
	FeatureCount int             `json:"feature_count"`
	GeoJSON      json.RawMessage `json:"geojson,omitempty"`
	Legend       json.RawMessage `json:"legend,omitempty"`
	RenderedAt   time.Time       `json:"rendered_at"`
}
