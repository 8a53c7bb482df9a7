package dem

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 4x3 grid, 10 m cells, lower-left corner at (1000, 2000).
const smallASC = `ncols 4
nrows 3
xllcorner 1000
yllcorner 2000
cellsize 10
NODATA_value -9999
100 110 120 130
200 210 -9999 230
300 310 320 330
`

func TestReadASCIIGrid(t *testing.T) {
	g, err := ReadASCIIGrid(strings.NewReader(smallASC), 32610)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Cols)
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 32610, g.EPSG)
	assert.Equal(t, [6]float64{1000, 10, 0, 2030, 0, -10}, g.Transform)

	tests := []struct {
		name string
		x, y float64
		want float64
		ok   bool
	}{
		{"top-left cell", 1001, 2029, 100, true},
		{"bottom-right cell", 1039, 2001, 330, true},
		{"middle row", 1015, 2015, 210, true},
		{"nodata cell", 1025, 2015, 0, false},
		{"west of raster", 999, 2015, 0, false},
		{"north of raster", 1015, 2030.5, 0, false},
		{"exact left edge", 1000, 2015, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := g.At(tt.x, tt.y)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
		})
	}
}

func TestReadASCIIGrid_CenterOrigin(t *testing.T) {
	asc := "ncols 2\nnrows 1\nxllcenter 5\nyllcenter 5\ncellsize 10\n1 2\n"
	g, err := ReadASCIIGrid(strings.NewReader(asc), 32610)
	require.NoError(t, err)
	assert.Equal(t, [6]float64{0, 10, 0, 10, 0, -10}, g.Transform)

	v, ok := g.At(15, 5)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestReadASCIIGrid_Errors(t *testing.T) {
	tests := map[string]string{
		"missing size":     "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"missing cellsize": "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\n1\n",
		"missing origin":   "ncols 1\nnrows 1\ncellsize 1\n1\n",
		"short data":       "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"bad cell":         "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 x\n",
	}
	for name, asc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadASCIIGrid(strings.NewReader(asc), 4326)
			require.Error(t, err)
		})
	}
}

func TestNewGrid_Validation(t *testing.T) {
	_, err := NewGrid(0, 1, [6]float64{0, 1, 0, 0, 0, -1}, nil, 4326)
	require.Error(t, err)

	_, err = NewGrid(2, 2, [6]float64{0, 1, 0, 0, 0, -1}, []float64{1}, 4326)
	require.Error(t, err)

	_, err = NewGrid(1, 1, [6]float64{0, 0, 0, 0, 0, 0}, []float64{1}, 4326)
	require.Error(t, err)
}

func TestGrid_RotatedTransform(t *testing.T) {
	// 90° rotation: columns run north, rows run east.
	g, err := NewGrid(2, 2, [6]float64{0, 0, 1, 0, 1, 0}, []float64{1, 2, 3, 4}, 32610)
	require.NoError(t, err)

	v, ok := g.At(0.5, 1.5) // row 0, col 1
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	v, ok = g.At(1.5, 0.5) // row 1, col 0
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestWorldFileTransform(t *testing.T) {
	tr := worldFileTransform(30, 0, 0, -30, 500015, 4200015)
	assert.Equal(t, [6]float64{500000, 30, 0, 4200030, 0, -30}, tr)
	assert.False(t, math.IsNaN(tr[0]))
}
