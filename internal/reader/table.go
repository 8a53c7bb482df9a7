package reader

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/crs"
	"github.com/sells-group/segment-assigner/internal/model"
)

var (
	latColumns  = []string{"lat", "latitude", "y"}
	lonColumns  = []string{"lon", "long", "longitude", "x"}
	geomColumns = []string{"wkt", "geometry", "geom", "the_geom", "shape"}
)

// ReadCSV reads a delimited table. Points come from latitude/longitude
// columns (EPSG:4326); without them a WKT or hex WKB geometry column is used.
func ReadCSV(ctx context.Context, r io.Reader) (*model.Layer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "reader: csv")
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "reader: csv: read row")
		}
		rows = append(rows, rec)
	}
	return tableLayer(rows)
}

// ReadXLSX reads the first sheet of a workbook with the same column rules
// as ReadCSV.
func ReadXLSX(path string) (*model.Layer, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "reader: xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("reader: xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return tableLayer(rows)
}

// tableLayer turns a header row plus data rows into a layer.
func tableLayer(rows [][]string) (*model.Layer, error) {
	if len(rows) == 0 {
		return nil, eris.New("reader: table has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	layer := &model.Layer{EPSG: crs.WGS84, Columns: header}
	latIdx, lonIdx := findColumn(header, latColumns), findColumn(header, lonColumns)
	geomIdx := findColumn(header, geomColumns)
	if (latIdx < 0 || lonIdx < 0) && geomIdx < 0 {
		return nil, eris.Errorf("reader: table must have lat/lon or geometry columns; found: [%s]", strings.Join(header, ", "))
	}

	var bad, srid int
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		props := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				props[col] = strings.TrimSpace(rec[i])
			}
		}

		var g orb.Geometry
		if latIdx >= 0 && lonIdx >= 0 {
			lat, errLat := strconv.ParseFloat(props[header[latIdx]], 64)
			lon, errLon := strconv.ParseFloat(props[header[lonIdx]], 64)
			if errLat == nil && errLon == nil {
				g = orb.Point{lon, lat}
			}
		} else {
			var s int
			var err error
			g, s, err = ParseGeometryText(props[header[geomIdx]])
			if err != nil {
				zap.L().Debug("reader: bad geometry cell", zap.Error(err))
			}
			if s != 0 {
				srid = s
			}
		}
		if g == nil {
			bad++
		}
		layer.Features = append(layer.Features, model.Feature{Geometry: g, Props: props})
	}

	if srid != 0 {
		layer.EPSG = srid
	}
	if bad > 0 {
		zap.L().Warn("reader: table rows without usable geometry", zap.Int("rows", bad))
	}
	return layer, nil
}

// findColumn returns the index of the first candidate present in header,
// matching case-insensitively. Candidates are tried in order.
func findColumn(header, candidates []string) int {
	for _, c := range candidates {
		for i, h := range header {
			if strings.EqualFold(h, c) {
				return i
			}
		}
	}
	return -1
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
