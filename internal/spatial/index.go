// Package spatial provides the bounding-box broad phase used to find lines
// near a point before exact distances are computed.
package spatial

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// R-tree node fan-out.
const (
	minChildren = 25
	maxChildren = 50
)

// epsilon pads zero-width envelopes (points, axis-aligned segments) so the
// R-tree accepts them as rectangles.
const epsilon = 1e-9

// entry adapts one envelope to rtreego.Spatial.
type entry struct {
	idx  int
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// Index answers "which envelopes intersect this query envelope". It is
// read-only once built; build a new Index whenever the line set changes.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex bulk-loads an index over the given envelopes. The index returned
// by Query refers to positions in bounds. Empty bounds are skipped.
func NewIndex(bounds []orb.Bound) *Index {
	objs := make([]rtreego.Spatial, 0, len(bounds))
	for i, b := range bounds {
		rect, ok := toRect(b)
		if !ok {
			continue
		}
		objs = append(objs, &entry{idx: i, rect: rect})
	}
	return &Index{
		tree: rtreego.NewTree(2, minChildren, maxChildren, objs...),
		size: len(objs),
	}
}

// Len returns the number of indexed envelopes.
func (ix *Index) Len() int {
	return ix.size
}

// Query returns, in ascending order, the positions of every indexed envelope
// that intersects q. It may return envelopes whose geometry is farther away
// than q suggests; callers follow with an exact distance check.
func (ix *Index) Query(q orb.Bound) []int {
	if ix.size == 0 {
		return nil
	}
	// Pad so envelopes that only touch q still intersect it.
	rect, ok := toRect(q.Pad(epsilon))
	if !ok {
		return nil
	}
	hits := ix.tree.SearchIntersect(rect)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*entry).idx)
	}
	slices.Sort(out)
	return out
}

// Envelope returns the square envelope of a disc of radius r centred on p.
func Envelope(p orb.Point, r float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{p[0] - r, p[1] - r},
		Max: orb.Point{p[0] + r, p[1] + r},
	}
}

func toRect(b orb.Bound) (rtreego.Rect, bool) {
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return rtreego.Rect{}, false
	}
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	minX, minY := b.Min[0], b.Min[1]
	if w < epsilon {
		minX -= epsilon / 2
		w = epsilon
	}
	if h < epsilon {
		minY -= epsilon / 2
		h = epsilon
	}
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
