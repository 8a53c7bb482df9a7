// Package dem loads elevation rasters and samples them at points and along
// lines. Raster values are meters; samples are returned in feet.
package dem

import (
	"math"

	"github.com/rotisserie/eris"
)

// Grid is a single-band raster in memory. Transform maps pixel edge
// coordinates (col, row) to map coordinates:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
//
// Missing cells hold NaN.
type Grid struct {
	Cols, Rows int
	Transform  [6]float64
	Data       []float64
	EPSG       int

	inv [6]float64
}

// NewGrid validates the raster shape and precomputes the inverse transform.
func NewGrid(cols, rows int, transform [6]float64, data []float64, epsg int) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, eris.Errorf("dem: invalid raster size %dx%d", cols, rows)
	}
	if len(data) != cols*rows {
		return nil, eris.Errorf("dem: expected %d cells, got %d", cols*rows, len(data))
	}
	det := transform[1]*transform[5] - transform[2]*transform[4]
	if det == 0 || math.IsNaN(det) {
		return nil, eris.New("dem: degenerate geotransform")
	}

	g := &Grid{Cols: cols, Rows: rows, Transform: transform, Data: data, EPSG: epsg}
	g.inv = [6]float64{
		(transform[2]*transform[3] - transform[0]*transform[5]) / det,
		transform[5] / det,
		-transform[2] / det,
		(transform[0]*transform[4] - transform[1]*transform[3]) / det,
		-transform[4] / det,
		transform[1] / det,
	}
	return g, nil
}

// At returns the value of the cell containing (x, y). ok is false outside
// the raster or on a missing cell.
func (g *Grid) At(x, y float64) (v float64, ok bool) {
	col := math.Floor(g.inv[0] + x*g.inv[1] + y*g.inv[2])
	row := math.Floor(g.inv[3] + x*g.inv[4] + y*g.inv[5])
	if col < 0 || row < 0 || col >= float64(g.Cols) || row >= float64(g.Rows) {
		return math.NaN(), false
	}
	v = g.Data[int(row)*g.Cols+int(col)]
	return v, !math.IsNaN(v)
}

// worldFileTransform converts world file parameters (A, D, B, E, C, F with
// C/F at the centre of the upper-left pixel) to an edge-based transform.
func worldFileTransform(a, d, b, e, c, f float64) [6]float64 {
	return [6]float64{
		c - a/2 - b/2, a, b,
		f - d/2 - e/2, d, e,
	}
}
