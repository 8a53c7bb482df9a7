package reader

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/crs"
)

var (
	utmZoneRe  = regexp.MustCompile(`(?i)UTM[_ ]zone[_ ](\d{1,2})\s*([NS])`)
	projNameRe = regexp.MustCompile(`PROJCS\["([^"]*)"`)
)

// EPSGFromPRJ maps an ESRI .prj (WKT1) to an EPSG code. Geographic
// definitions map to EPSG:4326 and WGS84 / NAD83 UTM zones to the matching
// WGS84 UTM code. Any other projected system is an error.
func EPSGFromPRJ(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return crs.WGS84, nil
	}
	if !strings.Contains(strings.ToUpper(text), "PROJCS") {
		return crs.WGS84, nil
	}

	m := utmZoneRe.FindStringSubmatch(text)
	if m == nil {
		name := "unknown"
		if n := projNameRe.FindStringSubmatch(text); n != nil {
			name = n[1]
		}
		return 0, eris.Errorf("reader: unsupported projection %q (want geographic or UTM)", name)
	}

	zone, _ := strconv.Atoi(m[1])
	if zone < 1 || zone > 60 {
		return 0, eris.Errorf("reader: invalid UTM zone %d", zone)
	}
	if strings.Contains(strings.ToUpper(text), "NAD") {
		zap.L().Warn("reader: treating NAD83 UTM as WGS84", zap.Int("zone", zone))
	}
	return crs.Zone{Number: zone, South: strings.EqualFold(m[2], "S")}.EPSG(), nil
}

// readPRJ returns the EPSG code from the .prj beside a shapefile, or 4326
// when there is none.
func readPRJ(shpPath string) (int, error) {
	base := strings.TrimSuffix(shpPath, ".shp")
	base = strings.TrimSuffix(base, ".SHP")
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return EPSGFromPRJ(string(data))
		}
		if !os.IsNotExist(err) {
			return 0, eris.Wrap(err, "reader: read prj")
		}
	}
	return crs.WGS84, nil
}
