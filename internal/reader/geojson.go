package reader

import (
	"encoding/json"
	"regexp"
	"slices"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/crs"
	"github.com/sells-group/segment-assigner/internal/model"
)

var epsgNameRe = regexp.MustCompile(`EPSG:+(\d+)$`)

// ParseGeoJSON decodes a FeatureCollection or a single Feature. Property
// values are stringified; columns are the sorted union of property keys.
// A legacy "crs" member naming an EPSG code sets the layer EPSG, otherwise
// EPSG:4326 applies.
func ParseGeoJSON(data []byte) (*model.Layer, error) {
	if err := arcgisError(data); err != nil {
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
		CRS  *struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "reader: decode geojson")
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, eris.Wrap(err, "reader: decode feature collection")
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "reader: decode feature")
		}
		features = []*geojson.Feature{f}
	default:
		return nil, eris.Errorf("reader: unsupported geojson type %q", head.Type)
	}

	layer := &model.Layer{EPSG: crs.WGS84}
	if head.CRS != nil {
		if m := epsgNameRe.FindStringSubmatch(head.CRS.Properties.Name); m != nil {
			epsg, _ := strconv.Atoi(m[1])
			if epsg != 4269 && epsg != 4326 {
				layer.EPSG = epsg
			}
		}
	}

	seen := map[string]bool{}
	for _, f := range features {
		props := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			s, ok := stringify(v)
			if !ok {
				continue
			}
			props[k] = s
			if !seen[k] {
				seen[k] = true
				layer.Columns = append(layer.Columns, k)
			}
		}
		layer.Features = append(layer.Features, model.Feature{Geometry: f.Geometry, Props: props})
	}
	slices.Sort(layer.Columns)
	return layer, nil
}

// stringify renders a decoded JSON value as column text. Null is reported
// as absent.
func stringify(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
