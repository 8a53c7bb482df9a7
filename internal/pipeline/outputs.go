package pipeline

import (
	"github.com/sells-group/segment-assigner/internal/export"
)

// writeOutputs writes every output path set in req.
func writeOutputs(req Request, res *Result) error {
	ids := export.IDColumns{Point: req.Params.PointIDColumn, Line: req.Params.LineIDColumn}
	out := req.Outputs

	if out.Candidates != "" {
		if err := export.WriteCandidatesFile(out.Candidates, ids, res.Candidates); err != nil {
			return err
		}
	}
	if out.Best != "" {
		if err := export.WriteBestMatchesFile(out.Best, ids, res.Best); err != nil {
			return err
		}
	}
	if out.XLSX != "" {
		if err := export.WriteXLSX(out.XLSX, ids, res.Candidates, res.Best); err != nil {
			return err
		}
	}
	if out.Manifest != "" {
		m := export.Manifest{
			RunID:     res.Run.ID,
			CreatedAt: res.Run.CreatedAt,
			Params:    res.Run.Params,
			Sources: export.Sources{
				Points:     req.PointsSource,
				Lines:      req.LinesSource,
				Constraint: req.ConstraintSource,
				DEM:        req.Elevation.DEMPath,
			},
			EPSG: res.Run.EPSG,
			Counts: export.Counts{
				Points:           res.Run.PointCount,
				Lines:            res.Run.LineCount,
				Candidates:       len(res.Candidates),
				BestMatches:      len(res.Best),
				UnknownElevation: res.UnknownElevation,
			},
			Outputs: export.Outputs{
				Candidates: out.Candidates,
				Best:       out.Best,
				XLSX:       out.XLSX,
			},
			Warnings: res.Warnings,
		}
		if err := export.WriteManifest(out.Manifest, m); err != nil {
			return err
		}
	}
	return nil
}
