package reader

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestParseGeometryText_WKT(t *testing.T) {
	tests := []struct {
		in   string
		want orb.Geometry
	}{
		{"POINT (1 2)", orb.Point{1, 2}},
		{"LINESTRING (0 0, 10 0, 10 10)", orb.LineString{{0, 0}, {10, 0}, {10, 10}}},
		{"MULTILINESTRING ((0 0, 1 1), (2 2, 3 3))", orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}},
		{"POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))", orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}}},
		{"MULTIPOINT ((5 6))", orb.MultiPoint{{5, 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, srid, err := ParseGeometryText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, 0, srid)
			assert.Equal(t, tt.want, g)
		})
	}
}

func TestParseGeometryText_HexEWKB(t *testing.T) {
	// SRID=4326;POINT(1 2)
	g, srid, err := ParseGeometryText("0101000020E6100000000000000000F03F0000000000000040")
	require.NoError(t, err)
	assert.Equal(t, 4326, srid)
	assert.Equal(t, orb.Point{1, 2}, g)
}

func TestParseGeometryText_EmptyAndInvalid(t *testing.T) {
	g, _, err := ParseGeometryText("   ")
	require.NoError(t, err)
	assert.Nil(t, g)

	g, _, err = ParseGeometryText("LINESTRING EMPTY")
	require.NoError(t, err)
	assert.Nil(t, g)

	_, _, err = ParseGeometryText("LINESTRING (0 0,")
	require.Error(t, err)
}

func TestFromGeom_Unsupported(t *testing.T) {
	_, err := fromGeom(geom.NewGeometryCollection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry type")
}

func TestShapeToGeom_PolyLineParts(t *testing.T) {
	pl := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
		{{X: 5, Y: 5}, {X: 6, Y: 6}, {X: 7, Y: 5}},
	})
	g, err := fromGeom(shapeToGeom(pl))
	require.NoError(t, err)
	assert.Equal(t, orb.MultiLineString{
		{{0, 0}, {1, 1}},
		{{5, 5}, {6, 6}, {7, 5}},
	}, g)
}

func TestShapeToGeom_PolygonHoles(t *testing.T) {
	// Outer rings run clockwise, holes counter-clockwise.
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	second := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}

	poly := &shp.Polygon{
		NumParts:  3,
		NumPoints: 15,
		Parts:     []int32{0, 5, 10},
		Points:    append(append(append([]shp.Point{}, outer...), hole...), second...),
	}

	g, err := fromGeom(shapeToGeom(poly))
	require.NoError(t, err)
	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 2)
	assert.Len(t, mp[0], 2)
	assert.Len(t, mp[1], 1)
}

func TestShapeToGeom_PointVariants(t *testing.T) {
	for _, s := range []shp.Shape{
		&shp.Point{X: 1, Y: 2},
		&shp.PointZ{X: 1, Y: 2, Z: 3},
		&shp.PointM{X: 1, Y: 2, M: 3},
	} {
		g, err := fromGeom(shapeToGeom(s))
		require.NoError(t, err)
		assert.Equal(t, orb.Point{1, 2}, g)
	}
	assert.Nil(t, shapeToGeom(&shp.Null{}))
}

func TestSplitParts_BadOffsets(t *testing.T) {
	pts := []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	assert.Len(t, splitParts([]int32{0, 5}, pts), 1)
	assert.Empty(t, splitParts([]int32{3}, pts))
}
