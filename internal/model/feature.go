// Package model defines the feature, candidate, and run types shared across the assigner.
package model

import "github.com/paulmach/orb"

// Feature is one record of a vector layer: a geometry plus its attribute
// values keyed by column name.
type Feature struct {
	Geometry orb.Geometry
	Props    map[string]string
}

// Layer is the tabular result of reading a vector source. Columns preserves
// the attribute order of the source; EPSG names the coordinate reference of
// every geometry in the layer.
type Layer struct {
	EPSG     int
	Columns  []string
	Features []Feature
}

// HasColumn reports whether the layer carries the named attribute column.
func (l *Layer) HasColumn(name string) bool {
	for _, c := range l.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// PointFeature is a station (or any point) in a planar coordinate system.
type PointFeature struct {
	ID     ID
	Geom   orb.Point
	ElevFt *float64
}

// LineFeature is a line segment (possibly multi-part) in a planar coordinate
// system, with an optional elevation band.
type LineFeature struct {
	ID        ID
	Geom      orb.MultiLineString
	MinElevFt *float64
	MaxElevFt *float64
}

// Empty reports whether the line has no drawable vertices.
func (l LineFeature) Empty() bool {
	for _, ls := range l.Geom {
		if len(ls) > 0 {
			return false
		}
	}
	return true
}

// Float returns a pointer to v, for building optional elevation values.
func Float(v float64) *float64 {
	return &v
}
