package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    DatasetFormat
		wantErr bool
	}{
		{path: "ne_110m_admin_0_countries.shp", want: FormatShapefile},
		{path: "/data/pop.CSV", want: FormatCSV},
		{path: "gdp.tsv", want: FormatCSV},
		{path: "attributes.xlsx", want: FormatXLSX},
		{path: "archive.zip", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatasetFormatValid(t *testing.T) {
	assert.True(t, FormatShapefile.Valid())
	assert.True(t, FormatCSV.Valid())
	assert.True(t, FormatXLSX.Valid())
	assert.False(t, DatasetFormat("geojson").Valid())
	assert.False(t, DatasetFormat("").Valid())
}
