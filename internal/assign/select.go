package assign

import (
	"cmp"
	"slices"

	"github.com/sells-group/segment-assigner/internal/model"
)

// SelectBestMatch ranks candidates and keeps the first Params.TopN rows of
// each group (by line id or point id). The ranking is total:
//
//  1. elevation pass before fail
//  2. distance ascending
//  3. elevation delta ascending, missing deltas last
//  4. line id ascending
//  5. point id ascending
//
// so the result does not depend on the order of cands. The input slice is
// not modified. Rows are returned in ranked order.
func SelectBestMatch(cands []model.Candidate, p Params) ([]model.BestMatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ranked := Rank(cands)

	kept := make(map[model.ID]int)
	best := make([]model.BestMatch, 0, len(ranked))
	for _, row := range ranked {
		key := row.LineID
		if p.GroupBy == GroupByPoint {
			key = row.PointID
		}
		if kept[key] >= p.TopN {
			continue
		}
		kept[key]++
		best = append(best, row)
	}
	return best, nil
}

// Rank derives the elevation delta for every candidate and returns them in
// ranked order. Line and point ids compare numerically only when every id
// of that column is a number.
func Rank(cands []model.Candidate) []model.BestMatch {
	rows := make([]model.BestMatch, len(cands))
	lineIDs := make([]model.ID, len(cands))
	pointIDs := make([]model.ID, len(cands))
	for i, c := range cands {
		rows[i] = model.BestMatch{
			Candidate:   c,
			ElevDeltaFt: ElevDelta(c.PointElevFt, c.LineMinElevFt, c.LineMaxElevFt),
		}
		lineIDs[i], pointIDs[i] = c.LineID, c.PointID
	}
	rk := ranker{lines: model.NewIDOrder(lineIDs), points: model.NewIDOrder(pointIDs)}
	slices.SortStableFunc(rows, rk.compare)
	return rows
}

type ranker struct {
	lines, points model.IDOrder
}

// compare orders two ranked rows by the best-match key.
func (rk ranker) compare(a, b model.BestMatch) int {
	if a.ElevPass != b.ElevPass {
		if a.ElevPass {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.DistanceM, b.DistanceM); c != 0 {
		return c
	}
	if c := compareDelta(a.ElevDeltaFt, b.ElevDeltaFt); c != 0 {
		return c
	}
	if c := rk.lines.Compare(a.LineID, b.LineID); c != 0 {
		return c
	}
	return rk.points.Compare(a.PointID, b.PointID)
}

// compareDelta sorts nil (not comparable) after every present delta.
func compareDelta(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}
