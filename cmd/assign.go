package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/pipeline"
	"github.com/sells-group/segment-assigner/internal/units"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign stations to overhead line segments",
	Long:  "Reads the station and segment layers, keeps segments within the distance radius of each station, checks elevations, and writes the candidate and best-match tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("assign"); err != nil {
			return err
		}

		req, err := assignRequest(cmd.Flags())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		res, err := pipeline.New(newReader(), st).Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "assign")
		}

		formatAssignSummary(os.Stdout, req, res)
		return nil
	},
}

// assignRequest merges the config defaults with any flags the user set.
func assignRequest(flags *pflag.FlagSet) (pipeline.Request, error) {
	params, err := cfg.Assign.Params()
	if err != nil {
		return pipeline.Request{}, err
	}
	elev := cfg.Elevation.Pipeline()
	out := pipeline.Outputs{
		Candidates: cfg.Output.Candidates,
		Best:       cfg.Output.Best,
		XLSX:       cfg.Output.XLSX,
		Manifest:   cfg.Output.Manifest,
	}
	target := cfg.CRS.TargetEPSG

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *float64) {
		if flags.Changed(name) {
			*dst, _ = flags.GetFloat64(name)
		}
	}
	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}

	if flags.Changed("distance-miles") {
		params.Distance, _ = flags.GetFloat64("distance-miles")
		params.DistanceUnit = units.Miles
	}
	num("elev-tol-ft", &params.ElevTolFt)
	str("point-id", &params.PointIDColumn)
	str("line-id", &params.LineIDColumn)
	str("filter", &params.FilterExpr)
	integer("top-n", &params.TopN)
	integer("workers", &params.Workers)
	if flags.Changed("group-by") {
		v, _ := flags.GetString("group-by")
		g, err := assign.ParseGroupBy(v)
		if err != nil {
			return pipeline.Request{}, err
		}
		params.GroupBy = g
	}
	if off, _ := flags.GetBool("no-elevation"); off {
		params.CheckElevation = false
	}
	if err := params.Validate(); err != nil {
		return pipeline.Request{}, err
	}

	str("dem", &elev.DEMPath)
	integer("dem-epsg", &elev.DEMEPSG)
	str("point-elev-col", &elev.PointColumn)
	str("line-min-col", &elev.LineMinColumn)
	str("line-max-col", &elev.LineMaxColumn)
	integer("epsg", &target)
	str("out-candidates", &out.Candidates)
	str("out-best", &out.Best)
	str("xlsx", &out.XLSX)
	str("manifest", &out.Manifest)

	points, _ := flags.GetString("points")
	lines, _ := flags.GetString("lines")
	hfra, _ := flags.GetString("hfra")
	if points == "" || lines == "" {
		return pipeline.Request{}, eris.New("assign: --points and --lines are required")
	}

	return pipeline.Request{
		PointsSource:     points,
		LinesSource:      lines,
		ConstraintSource: hfra,
		Params:           params,
		Elevation:        elev,
		TargetEPSG:       target,
		Outputs:          out,
	}, nil
}

// formatAssignSummary writes a short report of a finished run to w.
func formatAssignSummary(out io.Writer, req pipeline.Request, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.Run.ID)
	_, _ = fmt.Fprintf(w, "EPSG:\t%d\n", res.Run.EPSG)
	_, _ = fmt.Fprintf(w, "Points:\t%d\n", res.Run.PointCount)
	_, _ = fmt.Fprintf(w, "Lines:\t%d\n", res.Run.LineCount)
	_, _ = fmt.Fprintf(w, "Candidates:\t%d\n", len(res.Candidates))
	_, _ = fmt.Fprintf(w, "Best matches:\t%d\n", len(res.Best))
	if res.UnknownElevation > 0 {
		_, _ = fmt.Fprintf(w, "Unknown elevation:\t%d\n", res.UnknownElevation)
	}
	for _, path := range []struct{ label, path string }{
		{"Candidates file", req.Outputs.Candidates},
		{"Best file", req.Outputs.Best},
		{"Workbook", req.Outputs.XLSX},
		{"Manifest", req.Outputs.Manifest},
	} {
		if path.path != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", path.label, path.path)
		}
	}
	_ = w.Flush()

	for _, warn := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warn)
	}
}

func init() {
	addAssignFlags(assignCmd.Flags())
	rootCmd.AddCommand(assignCmd)
}

func addAssignFlags(f *pflag.FlagSet) {
	f.String("points", "", "station layer: path or http(s)/ftp URL (GeoJSON, shapefile, zip, CSV, XLSX, ArcGIS layer)")
	f.String("lines", "", "segment layer: path or URL")
	f.String("hfra", "", "optional constraint polygon layer; segments are clipped to it")
	f.String("dem", "", "DEM raster (ESRI ASCII grid or GeoTIFF) used when elevation columns are missing")
	f.Int("dem-epsg", 0, "EPSG of the DEM (default: GeoTIFF keys, else 4326)")
	f.Float64("distance-miles", 0.5, "search radius in miles")
	f.Float64("elev-tol-ft", 500, "elevation tolerance in feet")
	f.String("point-id", "station_id", "station id column")
	f.String("line-id", "segment_id", "segment id column")
	f.String("point-elev-col", "station_elev_ft", "station elevation column (feet)")
	f.String("line-min-col", "seg_min_elev_ft", "segment minimum elevation column (feet)")
	f.String("line-max-col", "seg_max_elev_ft", "segment maximum elevation column (feet)")
	f.String("filter", "", "segment filter expression, e.g. \"STRUCTURE == 'OH'\"")
	f.Int("top-n", 1, "matches kept per group")
	f.String("group-by", "line", "group best matches by line (segment) or point (station)")
	f.Int("workers", 1, "parallel candidate workers")
	f.Bool("no-elevation", false, "skip the elevation check")
	f.Int("epsg", 0, "target UTM EPSG (default: zone of the station centroid)")
	f.String("out-candidates", "candidates.csv", "candidates CSV path (empty to skip)")
	f.String("out-best", "best_match.csv", "best-match CSV path (empty to skip)")
	f.String("xlsx", "", "optional workbook with both tables")
	f.String("manifest", "", "optional YAML run manifest")
}
