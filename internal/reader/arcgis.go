package reader

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

const arcgisQuery = "/query?where=1=1&outFields=*&f=geojson"

// ArcGISQueryURL rewrites an ArcGIS REST layer URL
// (".../FeatureServer/0", ".../MapServer/3") into a GeoJSON query for all
// features. A bare service URL targets layer 0. URLs that already carry a
// query or an "f=" format are returned unchanged with ok=false.
func ArcGISQueryURL(raw string) (string, bool) {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	lower := strings.ToLower(u)

	if !strings.Contains(lower, "featureserver") && !strings.Contains(lower, "mapserver") {
		return raw, false
	}
	if strings.Contains(lower, "query") || strings.Contains(lower, "f=") {
		return raw, false
	}

	switch {
	case strings.HasSuffix(lower, "/featureserver"), strings.HasSuffix(lower, "/mapserver"):
		return u + "/0" + arcgisQuery, true
	case lower[len(lower)-1] >= '0' && lower[len(lower)-1] <= '9':
		return u + arcgisQuery, true
	}
	return raw, false
}

// arcgisError extracts the error body ArcGIS servers return with HTTP 200.
func arcgisError(data []byte) error {
	var body struct {
		Error *struct {
			Code    int      `json:"code"`
			Message string   `json:"message"`
			Details []string `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil || body.Error == nil {
		return nil
	}
	msg := body.Error.Message
	if len(body.Error.Details) > 0 {
		msg += ": " + strings.Join(body.Error.Details, "; ")
	}
	return eris.Errorf("reader: arcgis error %d: %s", body.Error.Code, msg)
}
