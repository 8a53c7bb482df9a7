// Package pipeline runs an end-to-end assignment: read the point and line
// layers, narrow and project them, resolve elevations, generate and rank
// candidates, then write and persist the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/crs"
	"github.com/sells-group/segment-assigner/internal/filter"
	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/store"
)

// LayerReader loads a vector layer from a path or URL.
type LayerReader interface {
	Read(ctx context.Context, source string) (*model.Layer, error)
}

// Elevation says where elevations come from. Attribute columns win when
// present in the layer; the DEM fills in otherwise.
type Elevation struct {
	PointColumn     string
	LineMinColumn   string
	LineMaxColumn   string
	DEMPath         string
	DEMEPSG         int
	DEMNoData       *float64
	LineSampleStepM float64
}

// Outputs lists the files a run writes. Empty paths are skipped.
type Outputs struct {
	Candidates string
	Best       string
	XLSX       string
	Manifest   string
}

// Input is an assignment over layers that are already in memory.
type Input struct {
	Points     *model.Layer
	Lines      *model.Layer
	Constraint *model.Layer
	Params     assign.Params
	Elevation  Elevation
	// TargetEPSG forces a UTM zone; 0 picks the zone from the points.
	TargetEPSG int
}

// Request is a full run over sources that still have to be read.
type Request struct {
	PointsSource     string
	LinesSource      string
	ConstraintSource string
	Params           assign.Params
	Elevation        Elevation
	TargetEPSG       int
	Outputs          Outputs
}

// Result holds everything a run produced.
type Result struct {
	Run              *model.Run
	Candidates       []model.Candidate
	Best             []model.BestMatch
	UnknownElevation int
	Warnings         []string
}

// Pipeline wires the reader and the optional run store.
type Pipeline struct {
	reader LayerReader
	store  store.Store
	log    *zap.Logger
}

// New creates a Pipeline. st may be nil to skip persistence.
func New(rd LayerReader, st store.Store) *Pipeline {
	return &Pipeline{
		reader: rd,
		store:  st,
		log:    zap.L().With(zap.String("component", "pipeline")),
	}
}

// stage runs fn, logs its duration, and wraps its error with the stage name.
func stage(ctx context.Context, log *zap.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: %s", name)
	}
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", name)
	}
	log.Info("pipeline: stage complete",
		zap.String("stage", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

// Run reads the sources in req, assigns, writes the configured outputs, and
// persists the run. A failure after the parameters validate is still
// persisted as a failed run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	log := p.log.With(zap.String("points", req.PointsSource), zap.String("lines", req.LinesSource))
	log.Info("pipeline: starting assignment")

	in := Input{Params: req.Params, Elevation: req.Elevation, TargetEPSG: req.TargetEPSG}
	var res *Result
	err := p.read(ctx, log, req, &in)
	if err == nil {
		res, err = p.assign(ctx, log, in)
	}
	if err == nil {
		res.Run.PointsSource = req.PointsSource
		res.Run.LinesSource = req.LinesSource
		err = stage(ctx, log, "write_outputs", func() error {
			return writeOutputs(req, res)
		})
	}

	if err != nil {
		p.persistFailure(ctx, log, req, err)
		return nil, err
	}

	if err := p.Persist(ctx, res); err != nil {
		return nil, err
	}
	log.Info("pipeline: assignment complete",
		zap.String("run_id", res.Run.ID),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("best_matches", len(res.Best)),
	)
	return res, nil
}

func (p *Pipeline) read(ctx context.Context, log *zap.Logger, req Request, in *Input) error {
	if p.reader == nil {
		return eris.New("pipeline: no reader configured")
	}
	err := stage(ctx, log, "read_points", func() (err error) {
		in.Points, err = p.reader.Read(ctx, req.PointsSource)
		return err
	})
	if err != nil {
		return err
	}
	err = stage(ctx, log, "read_lines", func() (err error) {
		in.Lines, err = p.reader.Read(ctx, req.LinesSource)
		return err
	})
	if err != nil {
		return err
	}
	if req.ConstraintSource != "" {
		err = stage(ctx, log, "read_constraint", func() (err error) {
			in.Constraint, err = p.reader.Read(ctx, req.ConstraintSource)
			return err
		})
	}
	return err
}

// Assign runs the in-memory part of the pipeline on already-read layers.
// Nothing is written or persisted.
func (p *Pipeline) Assign(ctx context.Context, in Input) (*Result, error) {
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}
	return p.assign(ctx, p.log, in)
}

func (p *Pipeline) assign(ctx context.Context, log *zap.Logger, in Input) (*Result, error) {
	if in.Points == nil || in.Lines == nil {
		return nil, eris.New("pipeline: points and lines are required")
	}
	params := in.Params
	res := &Result{}
	warn := func(msg string, fields ...zap.Field) {
		log.Warn("pipeline: "+msg, fields...)
		res.Warnings = append(res.Warnings, msg)
	}

	points, lines := in.Points, in.Lines
	if err := requireColumn(points, "point", params.PointIDColumn); err != nil {
		return nil, err
	}
	if err := requireColumn(lines, "line", params.LineIDColumn); err != nil {
		return nil, err
	}

	err := stage(ctx, log, "filter", func() (err error) {
		lines, err = filter.Apply(ctx, lines, params.FilterExpr)
		return err
	})
	if err != nil {
		return nil, err
	}

	var target int
	err = stage(ctx, log, "project", func() error {
		var err error
		if target, err = crs.ResolveTarget(in.TargetEPSG, points, lines); err != nil {
			return err
		}
		if points, err = crs.Reproject(points, target); err != nil {
			return eris.Wrap(err, "points")
		}
		if lines, err = crs.Reproject(lines, target); err != nil {
			return eris.Wrap(err, "lines")
		}
		return nil
	})
	if errors.Is(err, crs.ErrNoGeometry) {
		warn("point and line layers have no geometry; nothing to assign")
		res.Candidates, res.Best = []model.Candidate{}, []model.BestMatch{}
		res.Run = newRun(params, 0, 0, 0)
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: projected", zap.Int("epsg", target))

	if in.Constraint != nil {
		err = stage(ctx, log, "restrict", func() error {
			zone, err := crs.Reproject(in.Constraint, target)
			if err != nil {
				return eris.Wrap(err, "constraint")
			}
			lines, err = filter.RestrictToPolygons(lines, zone)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var (
		pts []model.PointFeature
		lns []model.LineFeature
	)
	err = stage(ctx, log, "build_features", func() error {
		el := in.Elevation
		pointCol := ""
		if el.PointColumn != "" && points.HasColumn(el.PointColumn) {
			pointCol = el.PointColumn
		}
		minCol, maxCol := "", ""
		if el.LineMinColumn != "" && el.LineMaxColumn != "" &&
			lines.HasColumn(el.LineMinColumn) && lines.HasColumn(el.LineMaxColumn) {
			minCol, maxCol = el.LineMinColumn, el.LineMaxColumn
		}

		var skipped int
		pts, skipped = buildPoints(points, params.PointIDColumn, pointCol)
		if skipped > 0 {
			warn(fmt.Sprintf("%d point features without point geometry were skipped", skipped))
		}
		lns, skipped = buildLines(lines, params.LineIDColumn, minCol, maxCol)
		if skipped > 0 {
			warn(fmt.Sprintf("%d line features without line geometry were skipped", skipped))
		}

		if params.CheckElevation {
			if err := resolveElevation(pts, lns, target, el, pointCol == "", minCol == "", warn); err != nil {
				return err
			}
		}
		if n := swapReversedBands(lns); n > 0 {
			warn(fmt.Sprintf("%d lines had min elevation above max; values swapped", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = stage(ctx, log, "generate", func() (err error) {
		res.Candidates, err = assign.GenerateCandidates(ctx, pts, lns, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = stage(ctx, log, "select", func() (err error) {
		res.Best, err = assign.SelectBestMatch(res.Candidates, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, c := range res.Candidates {
		if c.ElevCheck == model.ElevCheckUnknown {
			res.UnknownElevation++
		}
	}
	if res.UnknownElevation > 0 {
		warn(fmt.Sprintf("%d candidates had unknown elevation and passed the elevation check", res.UnknownElevation),
			zap.Int("unknown", res.UnknownElevation))
	}

	res.Run = newRun(params, target, len(pts), len(lns))
	res.Run.CandidateCount = len(res.Candidates)
	res.Run.BestCount = len(res.Best)
	return res, nil
}

func newRun(params assign.Params, epsg, points, lines int) *model.Run {
	return &model.Run{
		ID:         uuid.New().String(),
		Status:     model.RunStatusComplete,
		Params:     params.Snapshot(),
		EPSG:       epsg,
		PointCount: points,
		LineCount:  lines,
		CreatedAt:  time.Now().UTC(),
	}
}

// Persist saves a completed result when a store is configured.
func (p *Pipeline) Persist(ctx context.Context, res *Result) error {
	if p.store == nil {
		return nil
	}
	return stage(ctx, p.log, "persist", func() error {
		return p.store.SaveRun(ctx, res.Run, res.Candidates, res.Best)
	})
}

func (p *Pipeline) persistFailure(ctx context.Context, log *zap.Logger, req Request, cause error) {
	if p.store == nil || ctx.Err() != nil {
		return
	}
	run := &model.Run{
		Status:       model.RunStatusFailed,
		Params:       req.Params.Snapshot(),
		PointsSource: req.PointsSource,
		LinesSource:  req.LinesSource,
		Error:        cause.Error(),
	}
	if err := p.store.SaveRun(ctx, run, nil, nil); err != nil {
		log.Warn("pipeline: failed to record failed run", zap.Error(err))
	}
}
