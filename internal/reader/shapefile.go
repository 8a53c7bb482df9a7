package reader

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/segment-assigner/internal/model"
)

// ReadShapefile reads a shapefile with its .dbf attributes and .prj
// projection. DBF text that is not valid UTF-8 is decoded as Windows-1252.
func ReadShapefile(shpPath string) (*model.Layer, error) {
	epsg, err := readPRJ(shpPath)
	if err != nil {
		return nil, err
	}

	// go-shp opens the .dbf lazily and ignores a missing one.
	dbfPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".dbf"
	if _, err := os.Stat(dbfPath); err != nil {
		return nil, eris.Wrapf(err, "reader: shapefile attribute table %s", dbfPath)
	}

	r, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "reader: open shapefile %s", shpPath)
	}
	defer func() { _ = r.Close() }()

	fields := r.Fields()
	layer := &model.Layer{EPSG: epsg, Columns: make([]string, len(fields))}
	for i, f := range fields {
		layer.Columns[i] = strings.TrimRight(f.String(), "\x00")
	}

	var skipped int
	for r.Next() {
		_, shape := r.Shape()

		props := make(map[string]string, len(fields))
		for i, col := range layer.Columns {
			val := strings.TrimSpace(strings.TrimRight(r.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			props[col] = decodeDBF(val)
		}

		g, err := fromGeom(shapeToGeom(shape))
		if err != nil || g == nil {
			skipped++
		}
		layer.Features = append(layer.Features, model.Feature{Geometry: g, Props: props})
	}

	if skipped > 0 {
		zap.L().Debug("reader: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return layer, nil
}

func decodeDBF(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
