package assign

import (
	"context"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/spatial"
	"github.com/sells-group/segment-assigner/internal/units"
)

// GenerateCandidates returns one Candidate for every (point, line) pair whose
// planar distance is within the configured radius. Both inputs must already
// share one projected coordinate system in meters.
//
// Points and lines with empty or non-finite geometry are dropped before the
// index is built. Empty inputs yield an empty, non-nil slice. The point set is
// split across Params.Workers goroutines; partial results are concatenated in
// input order, so the output order matches a sequential run.
func GenerateCandidates(ctx context.Context, points []model.PointFeature, lines []model.LineFeature, p Params) ([]model.Candidate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	pts := validPoints(points)
	lns := validLines(lines)
	out := []model.Candidate{}
	if len(pts) == 0 || len(lns) == 0 {
		return out, nil
	}

	bounds := make([]orb.Bound, len(lns))
	for i, l := range lns {
		bounds[i] = l.Geom.Bound()
	}
	ix := spatial.NewIndex(bounds)
	radius := p.RadiusMeters()

	workers := workerCount(p.Workers, len(pts))
	parts := make([][]model.Candidate, workers)
	chunk := (len(pts) + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(pts))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			rows, err := candidatesFor(gCtx, pts[lo:hi], lns, ix, radius, p)
			if err != nil {
				return err
			}
			parts[w] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, part := range parts {
		out = append(out, part...)
	}

	zap.L().Debug("assign: candidates generated",
		zap.Int("points", len(pts)),
		zap.Int("lines", len(lns)),
		zap.Float64("radius_m", radius),
		zap.Int("workers", workers),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

// candidatesFor runs the per-point broad phase, exact distance, and
// elevation steps for one partition of the point set.
func candidatesFor(ctx context.Context, pts []model.PointFeature, lns []model.LineFeature, ix *spatial.Index, radius float64, p Params) ([]model.Candidate, error) {
	var rows []model.Candidate
	for _, pt := range pts {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "assign: generate candidates")
		}

		for _, j := range ix.Query(spatial.Envelope(pt.Geom, radius)) {
			ln := lns[j]
			dist := DistanceToLine(pt.Geom, ln.Geom)
			if math.IsNaN(dist) {
				return nil, eris.Errorf("assign: distance filter: undefined distance between point %q and line %q", pt.ID, ln.ID)
			}
			if dist > radius {
				continue
			}

			pass, check := CheckElevation(p.CheckElevation, pt.ElevFt, ln.MinElevFt, ln.MaxElevFt, p.ElevTolFt)
			rows = append(rows, model.Candidate{
				PointID:       pt.ID,
				LineID:        ln.ID,
				DistanceM:     dist,
				DistanceFt:    units.MetersToFeetDistance(dist),
				PointElevFt:   present(pt.ElevFt),
				LineMinElevFt: present(ln.MinElevFt),
				LineMaxElevFt: present(ln.MaxElevFt),
				ElevPass:      pass,
				ElevCheck:     check,
			})
		}
	}
	return rows, nil
}

// DistanceToLine returns the exact planar distance from p to the nearest
// part of mls. Single-vertex parts are treated as points.
func DistanceToLine(p orb.Point, mls orb.MultiLineString) float64 {
	d := math.Inf(1)
	for _, ls := range mls {
		switch len(ls) {
		case 0:
			continue
		case 1:
			d = math.Min(d, planar.Distance(p, ls[0]))
		default:
			d = math.Min(d, planar.DistanceFrom(ls, p))
		}
	}
	return d
}

func validPoints(points []model.PointFeature) []model.PointFeature {
	out := make([]model.PointFeature, 0, len(points))
	for _, pt := range points {
		if finite(pt.Geom[0]) && finite(pt.Geom[1]) {
			out = append(out, pt)
		}
	}
	return out
}

func validLines(lines []model.LineFeature) []model.LineFeature {
	out := make([]model.LineFeature, 0, len(lines))
	for _, ln := range lines {
		if ln.Empty() {
			continue
		}
		b := ln.Geom.Bound()
		if finite(b.Min[0]) && finite(b.Min[1]) && finite(b.Max[0]) && finite(b.Max[1]) {
			out = append(out, ln)
		}
	}
	return out
}

func workerCount(requested, points int) int {
	n := requested
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return max(1, min(n, points))
}

// present copies v, normalizing NaN to nil.
func present(v *float64) *float64 {
	if missing(v) {
		return nil
	}
	c := *v
	return &c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
