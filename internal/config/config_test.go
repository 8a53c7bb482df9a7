package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/assign"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Assign.Distance, 1e-9)
	assert.Equal(t, "mi", cfg.Assign.DistanceUnit)
	assert.InDelta(t, 500.0, cfg.Assign.ElevTolFt, 1e-9)
	assert.Equal(t, "station_id", cfg.Assign.PointIDColumn)
	assert.Equal(t, "segment_id", cfg.Assign.LineIDColumn)
	assert.True(t, cfg.Assign.CheckElevation)
	assert.Equal(t, 1, cfg.Assign.TopN)
	assert.Equal(t, "line", cfg.Assign.GroupBy)
	assert.Equal(t, "station_elev_ft", cfg.Elevation.PointColumn)
	assert.Equal(t, "seg_min_elev_ft", cfg.Elevation.LineMinColumn)
	assert.Equal(t, "seg_max_elev_ft", cfg.Elevation.LineMaxColumn)
	assert.Nil(t, cfg.Elevation.DEMNoData)
	assert.InDelta(t, 100.0, cfg.Elevation.LineSampleStepM, 1e-9)
	assert.Equal(t, 0, cfg.CRS.TargetEPSG)
	assert.Equal(t, "segment-assigner/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "candidates.csv", cfg.Output.Candidates)
	assert.Equal(t, "best_match.csv", cfg.Output.Best)
	assert.Empty(t, cfg.Output.XLSX)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
assign:
  distance: 1.5
  distance_unit: km
  top_n: 3
  group_by: point
elevation:
  dem_path: /data/dem.asc
  dem_nodata: -9999
store:
  driver: sqlite
  database_url: runs.db
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 1.5, cfg.Assign.Distance, 1e-9)
	assert.Equal(t, "km", cfg.Assign.DistanceUnit)
	assert.Equal(t, 3, cfg.Assign.TopN)
	assert.Equal(t, "point", cfg.Assign.GroupBy)
	assert.Equal(t, "/data/dem.asc", cfg.Elevation.DEMPath)
	require.NotNil(t, cfg.Elevation.DEMNoData)
	assert.InDelta(t, -9999.0, *cfg.Elevation.DEMNoData, 1e-9)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 500.0, cfg.Assign.ElevTolFt, 1e-9)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ASSIGNER_STORE_DRIVER", "postgres")
	t.Setenv("ASSIGNER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ASSIGNER_SERVER_PORT", "3000")
	t.Setenv("ASSIGNER_ASSIGN_ELEV_TOL_FT", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 250.0, cfg.Assign.ElevTolFt, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("assign: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestAssignConfig_Params(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)

	p, err := cfg.Assign.Params()
	require.NoError(t, err)
	assert.Equal(t, assign.DefaultParams(), p)

	cfg.Assign.GroupBy = "station"
	p, err = cfg.Assign.Params()
	require.NoError(t, err)
	assert.Equal(t, assign.GroupByPoint, p.GroupBy)
}

func TestAssignConfig_ParamsInvalid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*AssignConfig)
	}{
		{name: "group by", mod: func(c *AssignConfig) { c.GroupBy = "circuit" }},
		{name: "distance", mod: func(c *AssignConfig) { c.Distance = 0 }},
		{name: "unit", mod: func(c *AssignConfig) { c.DistanceUnit = "leagues" }},
		{name: "top n", mod: func(c *AssignConfig) { c.TopN = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AssignConfig{
				Distance: 0.5, DistanceUnit: "miles", ElevTolFt: 500,
				PointIDColumn: "station_id", LineIDColumn: "segment_id",
				TopN: 1, GroupBy: "line", Workers: 1,
			}
			tt.mod(&c)
			_, err := c.Params()
			assert.Error(t, err)
		})
	}
}

func TestElevationConfig_Pipeline(t *testing.T) {
	nodata := -32768.0
	e := ElevationConfig{PointColumn: "z", DEMPath: "dem.tif", DEMEPSG: 26910, DEMNoData: &nodata, LineSampleStepM: 50}
	got := e.Pipeline()
	assert.Equal(t, "z", got.PointColumn)
	assert.Equal(t, "dem.tif", got.DEMPath)
	assert.Equal(t, 26910, got.DEMEPSG)
	assert.Same(t, &nodata, got.DEMNoData)
	assert.InDelta(t, 50.0, got.LineSampleStepM, 1e-9)
}

func TestFetchConfig_Options(t *testing.T) {
	o := FetchConfig{UserAgent: "ua", TimeoutSecs: 30, MaxRetries: 2, RequestsPerSecond: 4}.Options()
	assert.Equal(t, "ua", o.UserAgent)
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, 2, o.MaxRetries)
	assert.InDelta(t, 4.0, o.RequestsPerSecond, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mod     func(*Config)
		wantErr string
	}{
		{name: "assign no store", mode: "assign"},
		{name: "sqlite with url", mode: "assign", mod: func(c *Config) {
			c.Store.Driver = "sqlite"
			c.Store.DatabaseURL = "runs.db"
		}},
		{name: "sqlite default path", mode: "assign", mod: func(c *Config) { c.Store.Driver = "sqlite" }},
		{name: "store missing url", mode: "assign", mod: func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.database_url is required"},
		{name: "unknown driver", mode: "assign", mod: func(c *Config) {
			c.Store.Driver = "mysql"
			c.Store.DatabaseURL = "x"
		}, wantErr: "store.driver must be"},
		{name: "serve valid port", mode: "serve"},
		{name: "serve invalid port", mode: "serve", mod: func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port"},
		{name: "runs without store", mode: "runs", wantErr: "store.driver is required"},
		{name: "runs with store", mode: "runs", mod: func(c *Config) {
			c.Store.Driver = "sqlite"
			c.Store.DatabaseURL = "runs.db"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Store.Driver = "none"
			cfg.Server.Port = 8080
			if tt.mod != nil {
				tt.mod(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
