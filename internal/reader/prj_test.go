package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	prjGeographic = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	prjUTM10N     = `PROJCS["WGS_1984_UTM_Zone_10N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-123.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`
	prjUTM33S     = `PROJCS["WGS 84 / UTM zone 33S",GEOGCS["WGS 84"],PROJECTION["Transverse_Mercator"]]`
	prjNAD83UTM11 = `PROJCS["NAD_1983_UTM_Zone_11N",GEOGCS["GCS_North_American_1983"],PROJECTION["Transverse_Mercator"]]`
	prjStatePlane = `PROJCS["NAD_1983_StatePlane_California_II_FIPS_0402_Feet",GEOGCS["GCS_North_American_1983"],PROJECTION["Lambert_Conformal_Conic"]]`
)

func TestEPSGFromPRJ(t *testing.T) {
	tests := []struct {
		name    string
		prj     string
		want    int
		wantErr string
	}{
		{name: "empty", prj: "", want: 4326},
		{name: "geographic", prj: prjGeographic, want: 4326},
		{name: "utm north", prj: prjUTM10N, want: 32610},
		{name: "utm south", prj: prjUTM33S, want: 32733},
		{name: "nad83 utm", prj: prjNAD83UTM11, want: 32611},
		{name: "state plane", prj: prjStatePlane, wantErr: "NAD_1983_StatePlane_California_II_FIPS_0402_Feet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EPSGFromPRJ(tt.prj)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPRJ(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "lines.shp")

	epsg, err := readPRJ(shpPath)
	require.NoError(t, err)
	assert.Equal(t, 4326, epsg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lines.prj"), []byte(prjUTM10N), 0o644))
	epsg, err = readPRJ(shpPath)
	require.NoError(t, err)
	assert.Equal(t, 32610, epsg)
}
