package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/pipeline"
	"github.com/sells-group/segment-assigner/internal/reader"
	"github.com/sells-group/segment-assigner/internal/store"
)

// AssignRequest is the body of POST /v1/assign. Layers are GeoJSON
// FeatureCollections; EPSG overrides their CRS (default EPSG:4326 or the
// legacy crs member).
type AssignRequest struct {
	Points     json.RawMessage `json:"points"`
	Lines      json.RawMessage `json:"lines"`
	Constraint json.RawMessage `json:"constraint,omitempty"`
	EPSG       int             `json:"epsg,omitempty"`
	TargetEPSG int             `json:"target_epsg,omitempty"`
	Params     ParamOverrides  `json:"params"`
	Persist    bool            `json:"persist,omitempty"`
}

// ParamOverrides replaces the server defaults field by field.
type ParamOverrides struct {
	Distance       *float64 `json:"distance,omitempty"`
	DistanceUnit   *string  `json:"distance_unit,omitempty"`
	ElevTolFt      *float64 `json:"elev_tol_ft,omitempty"`
	PointIDColumn  *string  `json:"point_id_column,omitempty"`
	LineIDColumn   *string  `json:"line_id_column,omitempty"`
	Filter         *string  `json:"filter,omitempty"`
	CheckElevation *bool    `json:"check_elevation,omitempty"`
	TopN           *int     `json:"top_n,omitempty"`
	GroupBy        *string  `json:"group_by,omitempty"`
}

// AssignResponse is the body returned by POST /v1/assign.
type AssignResponse struct {
	Run        *model.Run        `json:"run"`
	Candidates []model.Candidate `json:"candidates"`
	Best       []model.BestMatch `json:"best"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// apply returns base with every set override copied in.
func (o ParamOverrides) apply(base assign.Params) (assign.Params, error) {
	p := base
	if o.Distance != nil {
		p.Distance = *o.Distance
	}
	if o.DistanceUnit != nil {
		p.DistanceUnit = *o.DistanceUnit
	}
	if o.ElevTolFt != nil {
		p.ElevTolFt = *o.ElevTolFt
	}
	if o.PointIDColumn != nil {
		p.PointIDColumn = *o.PointIDColumn
	}
	if o.LineIDColumn != nil {
		p.LineIDColumn = *o.LineIDColumn
	}
	if o.Filter != nil {
		p.FilterExpr = *o.Filter
	}
	if o.CheckElevation != nil {
		p.CheckElevation = *o.CheckElevation
	}
	if o.TopN != nil {
		p.TopN = *o.TopN
	}
	if o.GroupBy != nil {
		g, err := assign.ParseGroupBy(*o.GroupBy)
		if err != nil {
			return p, err
		}
		p.GroupBy = g
	}
	return p, p.Validate()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body: "+err.Error())
		return
	}

	params, err := req.Params.apply(s.opts.Defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, "params", err.Error())
		return
	}

	in := pipeline.Input{Params: params, Elevation: s.opts.Elevation, TargetEPSG: req.TargetEPSG}
	for _, l := range []struct {
		field    string
		raw      json.RawMessage
		dst      **model.Layer
		optional bool
	}{
		{"points", req.Points, &in.Points, false},
		{"lines", req.Lines, &in.Lines, false},
		{"constraint", req.Constraint, &in.Constraint, true},
	} {
		if len(l.raw) == 0 || string(l.raw) == "null" {
			if !l.optional {
				writeError(w, http.StatusBadRequest, l.field, l.field+" is required")
				return
			}
			continue
		}
		layer, err := reader.ParseGeoJSON(l.raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, l.field, err.Error())
			return
		}
		if req.EPSG != 0 {
			layer.EPSG = req.EPSG
		}
		*l.dst = layer
	}

	res, err := s.pipe.Assign(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}

	if req.Persist && s.store != nil {
		if err := s.pipe.Persist(r.Context(), res); err != nil {
			s.log.Error("api: persist run failed", zap.String("run_id", res.Run.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "", "failed to persist run")
			return
		}
	}

	writeJSON(w, http.StatusOK, AssignResponse{
		Run:        res.Run,
		Candidates: res.Candidates,
		Best:       res.Best,
		Warnings:   res.Warnings,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) bestMatches(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	best, err := s.store.BestMatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "best matches", err)
		return
	}
	writeJSON(w, http.StatusOK, best)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "", "run store is disabled")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "id", "run not found")
		return
	}
	s.internalError(w, op, err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("api: "+op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "", op+" failed")
}
