package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/export"
	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/store"
)

const utm10N = 32610

type fakeReader map[string]*model.Layer

func (f fakeReader) Read(_ context.Context, source string) (*model.Layer, error) {
	l, ok := f[source]
	if !ok {
		return nil, eris.Errorf("reader: %s not found", source)
	}
	return l, nil
}

func pointLayer(epsg int, rows ...model.Feature) *model.Layer {
	return &model.Layer{EPSG: epsg, Columns: []string{"station_id", "station_elev_ft"}, Features: rows}
}

func station(id string, x, y float64, elev string) model.Feature {
	props := map[string]string{"station_id": id}
	if elev != "" {
		props["station_elev_ft"] = elev
	}
	return model.Feature{Geometry: orb.Point{x, y}, Props: props}
}

func lineLayer(epsg int, rows ...model.Feature) *model.Layer {
	return &model.Layer{
		EPSG:     epsg,
		Columns:  []string{"segment_id", "STRUCTURE", "seg_min_elev_ft", "seg_max_elev_ft"},
		Features: rows,
	}
}

func segment(id, structure, lo, hi string, pts ...orb.Point) model.Feature {
	props := map[string]string{"segment_id": id, "STRUCTURE": structure}
	if lo != "" {
		props["seg_min_elev_ft"] = lo
	}
	if hi != "" {
		props["seg_max_elev_ft"] = hi
	}
	return model.Feature{Geometry: orb.LineString(pts), Props: props}
}

func testParams() assign.Params {
	p := assign.DefaultParams()
	p.Distance = 500
	p.DistanceUnit = "m"
	return p
}

func testElevation() Elevation {
	return Elevation{
		PointColumn:   "station_elev_ft",
		LineMinColumn: "seg_min_elev_ft",
		LineMaxColumn: "seg_max_elev_ft",
	}
}

// Station S1 sits 300 m west of L1 and 1000 m west of L2.
func projectedInput() Input {
	return Input{
		Points: pointLayer(utm10N,
			station("S1", 500000, 4000000, "1200"),
		),
		Lines: lineLayer(utm10N,
			segment("L1", "OH", "1000", "1500", orb.Point{500300, 3999000}, orb.Point{500300, 4001000}),
			segment("L2", "OH", "1000", "1500", orb.Point{501000, 3999000}, orb.Point{501000, 4001000}),
		),
		Params:    testParams(),
		Elevation: testElevation(),
	}
}

func TestAssign_WithinDistanceAndBand(t *testing.T) {
	res, err := New(nil, nil).Assign(context.Background(), projectedInput())
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, model.ID("S1"), c.PointID)
	assert.Equal(t, model.ID("L1"), c.LineID)
	assert.InDelta(t, 300.0, c.DistanceM, 1e-6)
	assert.InDelta(t, 300/0.3048, c.DistanceFt, 1e-6)
	assert.True(t, c.ElevPass)
	assert.Equal(t, model.ElevCheckPass, c.ElevCheck)

	require.Len(t, res.Best, 1)
	require.NotNil(t, res.Best[0].ElevDeltaFt)
	assert.InDelta(t, 200.0, *res.Best[0].ElevDeltaFt, 1e-9)

	assert.Equal(t, utm10N, res.Run.EPSG)
	assert.Equal(t, 1, res.Run.PointCount)
	assert.Equal(t, 2, res.Run.LineCount)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.NotEmpty(t, res.Run.ID)
	assert.Empty(t, res.Warnings)
}

func TestAssign_ElevationFail(t *testing.T) {
	in := projectedInput()
	in.Points.Features[0].Props["station_elev_ft"] = "3000"

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.False(t, res.Candidates[0].ElevPass)
	assert.Equal(t, model.ElevCheckFail, res.Candidates[0].ElevCheck)
}

func TestAssign_WGS84InputProjectsToUTM(t *testing.T) {
	in := Input{
		Points: pointLayer(4326, station("S1", -121.5, 39.6, "")),
		Lines: lineLayer(4326,
			segment("L1", "OH", "", "", orb.Point{-121.4965, 39.59}, orb.Point{-121.4965, 39.61}),
		),
		Params:    testParams(),
		Elevation: testElevation(),
	}

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 32610, res.Run.EPSG)
	require.Len(t, res.Candidates, 1)
	assert.InDelta(t, 300.0, res.Candidates[0].DistanceM, 5.0)
	assert.Equal(t, model.ElevCheckUnknown, res.Candidates[0].ElevCheck)
	assert.Equal(t, 1, res.UnknownElevation)
	assert.NotEmpty(t, res.Warnings)
}

func TestAssign_EmptyWGS84Layers(t *testing.T) {
	wgsLines := lineLayer(4326,
		segment("L1", "OH", "1000", "1500", orb.Point{-121.4965, 39.59}, orb.Point{-121.4965, 39.61}),
	)
	wgsPoints := pointLayer(4326, station("S1", -121.5, 39.6, "1200"))

	tests := []struct {
		name     string
		points   *model.Layer
		lines    *model.Layer
		wantEPSG int
		wantPts  int
		wantLns  int
	}{
		{name: "no points", points: pointLayer(4326), lines: wgsLines, wantEPSG: 32610, wantLns: 1},
		{name: "no lines", points: wgsPoints, lines: lineLayer(4326), wantEPSG: 32610, wantPts: 1},
		{name: "neither", points: pointLayer(4326), lines: lineLayer(4326)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Points: tt.points, Lines: tt.lines, Params: testParams(), Elevation: testElevation()}

			res, err := New(nil, nil).Assign(context.Background(), in)
			require.NoError(t, err)
			assert.NotNil(t, res.Candidates)
			assert.Empty(t, res.Candidates)
			assert.NotNil(t, res.Best)
			assert.Empty(t, res.Best)
			require.NotNil(t, res.Run)
			assert.Equal(t, model.RunStatusComplete, res.Run.Status)
			assert.Equal(t, tt.wantEPSG, res.Run.EPSG)
			assert.Equal(t, tt.wantPts, res.Run.PointCount)
			assert.Equal(t, tt.wantLns, res.Run.LineCount)
			assert.Zero(t, res.Run.CandidateCount)
		})
	}
}

func TestAssign_UnknownIDColumn(t *testing.T) {
	in := projectedInput()
	in.Params.LineIDColumn = "SEG_ID"

	_, err := New(nil, nil).Assign(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"SEG_ID"`)
	assert.Contains(t, err.Error(), "segment_id, STRUCTURE")
}

func TestAssign_FilterExpression(t *testing.T) {
	in := projectedInput()
	in.Lines.Features[0].Props["STRUCTURE"] = "UG"
	in.Params.Distance = 2000

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)

	in.Params.FilterExpr = "STRUCTURE == 'OH'"
	res, err = New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, model.ID("L2"), res.Candidates[0].LineID)

	in.Params.FilterExpr = "NOPE == 1"
	_, err = New(nil, nil).Assign(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE == 1")
}

func TestAssign_ConstraintPolygons(t *testing.T) {
	in := projectedInput()
	in.Params.Distance = 2000
	in.Constraint = &model.Layer{EPSG: utm10N, Features: []model.Feature{{
		Geometry: orb.Polygon{{
			{500900, 3998000}, {501100, 3998000}, {501100, 4002000}, {500900, 4002000}, {500900, 3998000},
		}},
	}}}

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, model.ID("L2"), res.Candidates[0].LineID)
	assert.Equal(t, 1, res.Run.LineCount)
}

func TestAssign_SwapsReversedBand(t *testing.T) {
	in := projectedInput()
	in.Lines.Features[0].Props["seg_min_elev_ft"] = "1500"
	in.Lines.Features[0].Props["seg_max_elev_ft"] = "1000"

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.InDelta(t, 1000.0, *res.Candidates[0].LineMinElevFt, 1e-9)
	assert.InDelta(t, 1500.0, *res.Candidates[0].LineMaxElevFt, 1e-9)
	assert.Contains(t, res.Warnings, "1 lines had min elevation above max; values swapped")
}

func TestAssign_ElevationDisabled(t *testing.T) {
	in := projectedInput()
	in.Params.CheckElevation = false
	in.Points.Features[0].Props["station_elev_ft"] = "9000"

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.True(t, res.Candidates[0].ElevPass)
	assert.Equal(t, model.ElevCheckDisabled, res.Candidates[0].ElevCheck)
}

func TestAssign_SkipsNonLineGeometry(t *testing.T) {
	in := projectedInput()
	in.Lines.Features = append(in.Lines.Features, model.Feature{
		Geometry: orb.Point{500100, 4000000},
		Props:    map[string]string{"segment_id": "P"},
	})

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Run.LineCount)
	assert.Contains(t, res.Warnings, "1 line features without line geometry were skipped")
}

func TestAssign_MultiPointUsesFirstPoint(t *testing.T) {
	in := projectedInput()
	in.Points.Features[0].Geometry = orb.MultiPoint{{500000, 4000000}, {502000, 4000000}}

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.InDelta(t, 300.0, res.Candidates[0].DistanceM, 1e-6)
}

func TestAssign_InvalidParams(t *testing.T) {
	in := projectedInput()
	in.Params.TopN = 0
	_, err := New(nil, nil).Assign(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_n")
}

func TestAssign_DEMElevation(t *testing.T) {
	dir := t.TempDir()
	demPath := filepath.Join(dir, "dem.asc")
	// 500 m cells; rows from north to south are 400, 300, 200, 100 m.
	grid := `ncols 4
nrows 4
xllcorner 499000
yllcorner 3999000
cellsize 500
NODATA_value -9999
400 400 400 400
300 300 300 300
200 200 200 200
100 100 100 100
`
	require.NoError(t, os.WriteFile(demPath, []byte(grid), 0o644))

	in := Input{
		Points: &model.Layer{EPSG: utm10N, Columns: []string{"station_id"}, Features: []model.Feature{
			{Geometry: orb.Point{500000, 4000100}, Props: map[string]string{"station_id": "S1"}},
		}},
		Lines: &model.Layer{EPSG: utm10N, Columns: []string{"segment_id"}, Features: []model.Feature{
			{Geometry: orb.LineString{{500300, 3999600}, {500300, 4000400}}, Props: map[string]string{"segment_id": "L1"}},
		}},
		Params: testParams(),
		Elevation: Elevation{
			PointColumn:     "station_elev_ft",
			LineMinColumn:   "seg_min_elev_ft",
			LineMaxColumn:   "seg_max_elev_ft",
			DEMPath:         demPath,
			DEMEPSG:         utm10N,
			LineSampleStepM: 50,
		},
	}

	res, err := New(nil, nil).Assign(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	require.NotNil(t, c.PointElevFt)
	require.NotNil(t, c.LineMinElevFt)
	require.NotNil(t, c.LineMaxElevFt)
	assert.InDelta(t, 300*3.28084, *c.PointElevFt, 1e-6)
	assert.InDelta(t, 200*3.28084, *c.LineMinElevFt, 1e-6)
	assert.InDelta(t, 300*3.28084, *c.LineMaxElevFt, 1e-6)
	assert.Equal(t, model.ElevCheckPass, c.ElevCheck)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := projectedInput()
	rd := fakeReader{"stations.csv": in.Points, "lines.geojson": in.Lines}

	st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	req := Request{
		PointsSource: "stations.csv",
		LinesSource:  "lines.geojson",
		Params:       in.Params,
		Elevation:    in.Elevation,
		Outputs: Outputs{
			Candidates: filepath.Join(dir, "candidates.csv"),
			Best:       filepath.Join(dir, "best_match.csv"),
			XLSX:       filepath.Join(dir, "assignments.xlsx"),
			Manifest:   filepath.Join(dir, "run.yaml"),
		},
	}

	res, err := New(rd, st).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Best, 1)

	f, err := os.Open(req.Outputs.Best)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	best, ids, err := export.ReadBestMatchesCSV(f)
	require.NoError(t, err)
	assert.Equal(t, export.IDColumns{Point: "station_id", Line: "segment_id"}, ids)
	require.Len(t, best, 1)
	assert.Equal(t, model.ID("L1"), best[0].LineID)

	assert.FileExists(t, req.Outputs.Candidates)
	assert.FileExists(t, req.Outputs.XLSX)

	m, err := export.ReadManifest(req.Outputs.Manifest)
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, m.RunID)
	assert.Equal(t, utm10N, m.EPSG)
	assert.Equal(t, 1, m.Counts.Candidates)
	assert.Equal(t, "lines.geojson", m.Sources.Lines)

	saved, err := st.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, "stations.csv", saved.PointsSource)
	assert.Equal(t, 1, saved.BestCount)
}

func TestRun_ReadFailureRecordsFailedRun(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	req := Request{PointsSource: "missing.csv", LinesSource: "lines.geojson", Params: testParams()}
	_, err = New(fakeReader{}, st).Run(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: read_points")

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "missing.csv")
}

func TestRun_ContextCancelled(t *testing.T) {
	in := projectedInput()
	rd := fakeReader{"p": in.Points, "l": in.Lines}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(rd, nil).Run(ctx, Request{PointsSource: "p", LinesSource: "l", Params: in.Params})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
