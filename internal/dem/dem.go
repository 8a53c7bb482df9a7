package dem

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/resample"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/segment-assigner/internal/crs"
	"github.com/sells-group/segment-assigner/internal/units"
)

// Options configures how a raster is opened.
type Options struct {
	// EPSG of the raster coordinates; 0 means the GeoTIFF keys, else EPSG:4326.
	EPSG int
	// NoData marks missing cells in TIFF rasters; it overrides GDAL_NODATA.
	NoData *float64
}

// Open loads an ESRI ASCII grid (.asc) or a TIFF (.tif, .tiff) referenced
// by GeoTIFF tags or a world file.
func Open(path string, opts Options) (*Grid, error) {
	if opts.EPSG != 0 && !crs.Supported(opts.EPSG) {
		return nil, eris.Errorf("dem: unsupported raster EPSG:%d", opts.EPSG)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dem: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var g *Grid
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		epsg := opts.EPSG
		if epsg == 0 {
			epsg = crs.WGS84
		}
		g, err = ReadASCIIGrid(f, epsg)
	case ".tif", ".tiff":
		fallback, werr := readWorldFileFor(path)
		if werr != nil {
			return nil, werr
		}
		g, err = ReadTIFF(f, fallback, opts.EPSG, opts.NoData)
	default:
		return nil, eris.Errorf("dem: unsupported raster format %q (want .asc, .tif)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("dem: raster loaded",
		zap.String("path", path),
		zap.Int("cols", g.Cols),
		zap.Int("rows", g.Rows),
		zap.Int("epsg", g.EPSG),
	)
	return g, nil
}

// SamplePoints returns the elevation in feet under each point. Points are
// given in fromEPSG. Points outside the raster or on missing cells get nil.
func (g *Grid) SamplePoints(pts []orb.Point, fromEPSG int) ([]*float64, error) {
	proj, err := crs.NewProjection(fromEPSG, g.EPSG)
	if err != nil {
		return nil, eris.Wrap(err, "dem: sample points")
	}

	out := make([]*float64, len(pts))
	for i, p := range pts {
		q := proj(p)
		if v, ok := g.At(q[0], q[1]); ok {
			ft := units.ElevationMetersToFeet(v)
			out[i] = &ft
		}
	}
	return out, nil
}

// SampleLineRange samples each line at evenly spaced positions and returns
// the minimum and maximum elevation in feet. Lines are given in fromEPSG,
// which must be metric (a UTM zone). Every part with positive length gets
// max(2, ceil(length/stepM)) samples including both ends; zero-length parts
// are skipped. Lines with no valid sample get nil for both values.
func (g *Grid) SampleLineRange(lines []orb.MultiLineString, fromEPSG int, stepM float64) (mins, maxs []*float64, err error) {
	if stepM <= 0 {
		return nil, nil, eris.New("dem: line sample step must be positive")
	}
	if _, ok := crs.ZoneFromEPSG(fromEPSG); !ok {
		return nil, nil, eris.Errorf("dem: line sampling needs projected input, got EPSG:%d", fromEPSG)
	}
	proj, err := crs.NewProjection(fromEPSG, g.EPSG)
	if err != nil {
		return nil, nil, eris.Wrap(err, "dem: sample lines")
	}

	mins = make([]*float64, len(lines))
	maxs = make([]*float64, len(lines))
	var zs []float64
	for i, mls := range lines {
		zs = zs[:0]
		for _, ls := range mls {
			length := planar.Length(ls)
			if len(ls) < 2 || length == 0 || math.IsNaN(length) {
				continue
			}
			n := max(2, int(math.Ceil(length/stepM)))
			for _, p := range resample.Resample(ls.Clone(), planar.Distance, n) {
				q := proj(p)
				if v, ok := g.At(q[0], q[1]); ok {
					zs = append(zs, v)
				}
			}
		}
		if len(zs) == 0 {
			continue
		}
		lo := units.ElevationMetersToFeet(floats.Min(zs))
		hi := units.ElevationMetersToFeet(floats.Max(zs))
		mins[i], maxs[i] = &lo, &hi
	}
	return mins, maxs, nil
}
