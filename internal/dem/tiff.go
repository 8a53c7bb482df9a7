package dem

import (
	"bufio"
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gtiff "github.com/google/tiff"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/sells-group/segment-assigner/internal/crs"
)

// Baseline TIFF and GeoTIFF tag ids.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagStripByteCounts = 279
	tagTileOffsets     = 324
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// GeoKey ids and values.
const (
	keyRasterType      = 1025
	keyGeographicType  = 2048
	keyProjectedType   = 3072
	rasterPixelIsPoint = 2
	sampleFormatFloat  = 3
)

// TIFFSource is what ReadTIFF needs to walk the IFD and then decode pixels.
type TIFFSource interface {
	io.ReaderAt
	io.ReadSeeker
}

// GeoInfo is the georeferencing carried in GeoTIFF tags.
type GeoInfo struct {
	Transform    [6]float64
	HasTransform bool
	// EPSG is the raw GeoKey code; 0 when absent.
	EPSG   int
	NoData *float64
}

// ReadTIFF decodes a single-band TIFF. Integer samples go through
// x/image/tiff; uncompressed 32/64-bit float strips are read directly. The
// GeoTIFF tags supply the geotransform, EPSG and nodata value; fallback (a
// world file) is used when the tags carry no transform. Explicit epsg and
// nodata arguments win over the tags. 16-bit integer samples are read as
// signed meters with -32768 missing.
func ReadTIFF(r TIFFSource, fallback *[6]float64, epsg int, nodata *float64) (*Grid, error) {
	t, err := gtiff.Parse(r, nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "dem: parse tiff")
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, eris.New("dem: tiff has no image directory")
	}
	tags := ifdTags{ifd: ifds[0]}

	geo, err := tags.geoInfo()
	if err != nil {
		return nil, err
	}
	transform := geo.Transform
	if !geo.HasTransform {
		if fallback == nil {
			return nil, eris.New("dem: tiff has no GeoTIFF transform and no world file")
		}
		transform = *fallback
	}
	if nodata == nil {
		nodata = geo.NoData
	}
	if epsg == 0 && geo.EPSG != 0 {
		if epsg, err = rasterEPSG(geo.EPSG); err != nil {
			return nil, err
		}
	}
	if epsg == 0 {
		epsg = crs.WGS84
	}

	var (
		cols, rows int
		data       []float64
	)
	if tags.first(tagSampleFormat, 1) == sampleFormatFloat {
		cols, rows, data, err = tags.readFloatStrips(r)
	} else {
		if _, err = r.Seek(0, io.SeekStart); err != nil {
			return nil, eris.Wrap(err, "dem: rewind tiff")
		}
		cols, rows, data, err = decodeIntegerTIFF(r)
	}
	if err != nil {
		return nil, err
	}

	if nodata != nil {
		for i, v := range data {
			if v == *nodata {
				data[i] = math.NaN()
			}
		}
	}
	return NewGrid(cols, rows, transform, data, epsg)
}

func decodeIntegerTIFF(r io.Reader) (int, int, []float64, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return 0, 0, nil, eris.Wrap(err, "dem: decode tiff")
	}

	b := img.Bounds()
	data := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v float64
			switch im := img.(type) {
			case *image.Gray16:
				s := int16(im.Gray16At(x, y).Y)
				if s == math.MinInt16 {
					v = math.NaN()
				} else {
					v = float64(s)
				}
			case *image.Gray:
				v = float64(im.GrayAt(x, y).Y)
			default:
				return 0, 0, nil, eris.Errorf("dem: unsupported tiff pixel type %T (want single-band gray)", img)
			}
			data = append(data, v)
		}
	}
	return b.Dx(), b.Dy(), data, nil
}

type ifdTags struct {
	ifd gtiff.IFD
}

// raw returns the value bytes of a tag, its byte order, element size and count.
func (t ifdTags) raw(id uint16) ([]byte, binary.ByteOrder, int, int, bool) {
	if !t.ifd.HasField(id) {
		return nil, nil, 0, 0, false
	}
	f := t.ifd.GetField(id)
	v := f.Value()
	size, n := int(f.Type().Size()), int(f.Count())
	b := v.Bytes()
	if size == 0 || len(b) < size*n {
		return nil, nil, 0, 0, false
	}
	return b[:size*n], v.Order(), size, n, true
}

// uints decodes BYTE, SHORT, LONG or LONG8 values.
func (t ifdTags) uints(id uint16) []uint64 {
	b, order, size, n, ok := t.raw(id)
	if !ok {
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		p := b[i*size:]
		switch size {
		case 1:
			out[i] = uint64(p[0])
		case 2:
			out[i] = uint64(order.Uint16(p))
		case 4:
			out[i] = uint64(order.Uint32(p))
		case 8:
			out[i] = order.Uint64(p)
		}
	}
	return out
}

// first returns the first integer value of a tag, or def.
func (t ifdTags) first(id uint16, def uint64) uint64 {
	if v := t.uints(id); len(v) > 0 {
		return v[0]
	}
	return def
}

// doubles decodes DOUBLE values.
func (t ifdTags) doubles(id uint16) []float64 {
	b, order, size, n, ok := t.raw(id)
	if !ok || size != 8 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return out
}

func (t ifdTags) ascii(id uint16) string {
	b, _, _, _, ok := t.raw(id)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}

func (t ifdTags) geoKeys() map[uint16]uint16 {
	dir := t.uints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return nil
	}
	keys := make(map[uint16]uint16, dir[3])
	for i := 4; i+3 < len(dir); i += 4 {
		// Only keys stored inline (location 0) are needed here.
		if dir[i+1] == 0 {
			keys[uint16(dir[i])] = uint16(dir[i+3])
		}
	}
	return keys
}

func (t ifdTags) geoInfo() (GeoInfo, error) {
	var g GeoInfo
	keys := t.geoKeys()

	if m := t.doubles(tagModelTransform); len(m) >= 8 {
		g.Transform = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
		g.HasTransform = true
	} else {
		scale, tie := t.doubles(tagModelPixelScale), t.doubles(tagModelTiepoint)
		if len(scale) >= 2 && len(tie) >= 6 {
			i, j, x, y := tie[0], tie[1], tie[3], tie[4]
			if keys[keyRasterType] == rasterPixelIsPoint {
				i, j = i-0.5, j-0.5
			}
			g.Transform = [6]float64{x - i*scale[0], scale[0], 0, y + j*scale[1], 0, -scale[1]}
			g.HasTransform = true
		}
	}

	code := keys[keyProjectedType]
	if code == 0 {
		code = keys[keyGeographicType]
	}
	g.EPSG = int(code)

	if s := t.ascii(tagGDALNoData); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return GeoInfo{}, eris.Wrapf(err, "dem: GDAL_NODATA %q", s)
		}
		g.NoData = &v
	}
	return g, nil
}

// rasterEPSG maps a GeoKey EPSG code to a supported one. NAD83 geographic
// and UTM codes are treated as their WGS84 counterparts.
func rasterEPSG(code int) (int, error) {
	switch {
	case code == crs.WGS84:
		return code, nil
	case code == 4269:
		zap.L().Warn("dem: treating NAD83 raster as WGS84")
		return crs.WGS84, nil
	case code >= 26901 && code <= 26923:
		zap.L().Warn("dem: treating NAD83 UTM raster as WGS84", zap.Int("zone", code-26900))
		return crs.Zone{Number: code - 26900}.EPSG(), nil
	case crs.Supported(code):
		return code, nil
	}
	return 0, eris.Errorf("dem: unsupported raster EPSG:%d from GeoTIFF keys", code)
}

// readFloatStrips reads an uncompressed single-band float raster.
func (t ifdTags) readFloatStrips(r io.ReaderAt) (int, int, []float64, error) {
	cols, rows := int(t.first(tagImageWidth, 0)), int(t.first(tagImageLength, 0))
	bits := int(t.first(tagBitsPerSample, 0))
	switch {
	case cols <= 0 || rows <= 0:
		return 0, 0, nil, eris.Errorf("dem: invalid tiff size %dx%d", cols, rows)
	case t.first(tagSamplesPerPixel, 1) != 1:
		return 0, 0, nil, eris.New("dem: float tiff must have a single band")
	case bits != 32 && bits != 64:
		return 0, 0, nil, eris.Errorf("dem: unsupported float sample width %d", bits)
	case t.first(tagCompression, 1) != 1:
		return 0, 0, nil, eris.Errorf("dem: compressed float tiff is not supported (compression %d)", t.first(tagCompression, 1))
	case t.ifd.HasField(tagTileOffsets):
		return 0, 0, nil, eris.New("dem: tiled float tiff is not supported")
	}

	offsets, counts := t.uints(tagStripOffsets), t.uints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return 0, 0, nil, eris.New("dem: float tiff strip offsets and byte counts do not match")
	}
	_, order, _, _, _ := t.raw(tagStripOffsets)

	width := bits / 8
	want := cols * rows
	data := make([]float64, 0, want)
	for s, off := range offsets {
		buf := make([]byte, counts[s])
		if _, err := r.ReadAt(buf, int64(off)); err != nil {
			return 0, 0, nil, eris.Wrapf(err, "dem: read strip %d", s)
		}
		for p := 0; p+width <= len(buf) && len(data) < want; p += width {
			if width == 4 {
				data = append(data, float64(math.Float32frombits(order.Uint32(buf[p:]))))
			} else {
				data = append(data, math.Float64frombits(order.Uint64(buf[p:])))
			}
		}
	}
	if len(data) != want {
		return 0, 0, nil, eris.Errorf("dem: float tiff strips hold %d samples, want %d", len(data), want)
	}
	return cols, rows, data, nil
}

// ReadWorldFile parses the six lines of a world file (.tfw, .tifw, .wld).
func ReadWorldFile(r io.Reader) ([6]float64, error) {
	var vals []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(vals) < 6 {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return [6]float64{}, eris.Wrapf(err, "dem: world file line %d", len(vals)+1)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return [6]float64{}, eris.Wrap(err, "dem: read world file")
	}
	if len(vals) != 6 {
		return [6]float64{}, eris.Errorf("dem: world file has %d values, want 6", len(vals))
	}
	return worldFileTransform(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]), nil
}

// findWorldFile locates the world file beside a TIFF; "" when there is none.
func findWorldFile(tiffPath string) string {
	base := strings.TrimSuffix(tiffPath, filepath.Ext(tiffPath))
	for _, ext := range []string{".tfw", ".tifw", ".tiffw", ".wld", ".TFW", ".WLD"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return ""
}

// readWorldFileFor returns the world-file transform beside a TIFF, or nil.
func readWorldFileFor(tiffPath string) (*[6]float64, error) {
	wf := findWorldFile(tiffPath)
	if wf == "" {
		return nil, nil
	}
	f, err := os.Open(wf)
	if err != nil {
		return nil, eris.Wrap(err, "dem: open world file")
	}
	defer f.Close() //nolint:errcheck
	transform, err := ReadWorldFile(f)
	if err != nil {
		return nil, err
	}
	return &transform, nil
}
