package dem

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadASCIIGrid parses an ESRI ASCII grid (.asc).
func ReadASCIIGrid(r io.Reader, epsg int) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	var first string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("dem: ascii grid header %q has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dem: ascii grid header %q", tok)
		}
		hdr[key] = v
	}

	cols, rows := int(hdr["ncols"]), int(hdr["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, eris.New("dem: ascii grid missing ncols/nrows")
	}
	dx, dy := hdr["cellsize"], hdr["cellsize"]
	if v, ok := hdr["dx"]; ok {
		dx = v
	}
	if v, ok := hdr["dy"]; ok {
		dy = v
	}
	if dx <= 0 || dy <= 0 {
		return nil, eris.New("dem: ascii grid missing cellsize")
	}

	var x0, y0 float64
	switch {
	case has(hdr, "xllcorner"):
		x0 = hdr["xllcorner"]
	case has(hdr, "xllcenter"):
		x0 = hdr["xllcenter"] - dx/2
	default:
		return nil, eris.New("dem: ascii grid missing xllcorner/xllcenter")
	}
	switch {
	case has(hdr, "yllcorner"):
		y0 = hdr["yllcorner"]
	case has(hdr, "yllcenter"):
		y0 = hdr["yllcenter"] - dy/2
	default:
		return nil, eris.New("dem: ascii grid missing yllcorner/yllcenter")
	}

	nodata, hasNodata := hdr["nodata_value"]
	data := make([]float64, 0, cols*rows)
	push := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "dem: ascii grid cell %d", len(data))
		}
		if hasNodata && v == nodata {
			v = math.NaN()
		}
		data = append(data, v)
		return nil
	}
	if first != "" {
		if err := push(first); err != nil {
			return nil, err
		}
	}
	for len(data) < cols*rows && sc.Scan() {
		if err := push(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "dem: read ascii grid")
	}

	top := y0 + float64(rows)*dy
	return NewGrid(cols, rows, [6]float64{x0, dx, 0, top, 0, -dy}, data, epsg)
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}
