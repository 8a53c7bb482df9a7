package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/fetcher"
	"github.com/sells-group/segment-assigner/internal/pipeline"
)

// Config holds the full application configuration.
type Config struct {
	Assign    AssignConfig    `yaml:"assign" mapstructure:"assign"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	CRS       CRSConfig       `yaml:"crs" mapstructure:"crs"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AssignConfig holds the default assignment parameters.
type AssignConfig struct {
	Distance       float64 `yaml:"distance" mapstructure:"distance"`
	DistanceUnit   string  `yaml:"distance_unit" mapstructure:"distance_unit"`
	ElevTolFt      float64 `yaml:"elev_tol_ft" mapstructure:"elev_tol_ft"`
	PointIDColumn  string  `yaml:"point_id_column" mapstructure:"point_id_column"`
	LineIDColumn   string  `yaml:"line_id_column" mapstructure:"line_id_column"`
	Filter         string  `yaml:"filter" mapstructure:"filter"`
	CheckElevation bool    `yaml:"check_elevation" mapstructure:"check_elevation"`
	TopN           int     `yaml:"top_n" mapstructure:"top_n"`
	GroupBy        string  `yaml:"group_by" mapstructure:"group_by"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
}

// ElevationConfig names the elevation attribute columns and the optional DEM.
type ElevationConfig struct {
	PointColumn     string   `yaml:"point_column" mapstructure:"point_column"`
	LineMinColumn   string   `yaml:"line_min_column" mapstructure:"line_min_column"`
	LineMaxColumn   string   `yaml:"line_max_column" mapstructure:"line_max_column"`
	DEMPath         string   `yaml:"dem_path" mapstructure:"dem_path"`
	DEMEPSG         int      `yaml:"dem_epsg" mapstructure:"dem_epsg"`
	DEMNoData       *float64 `yaml:"dem_nodata" mapstructure:"dem_nodata"`
	LineSampleStepM float64  `yaml:"line_sample_step_m" mapstructure:"line_sample_step_m"`
}

// CRSConfig configures projection. TargetEPSG 0 picks the UTM zone from the
// point layer.
type CRSConfig struct {
	TargetEPSG int `yaml:"target_epsg" mapstructure:"target_epsg"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TempDir           string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// OutputConfig holds the default output paths. Empty paths are skipped.
type OutputConfig struct {
	Candidates string `yaml:"candidates" mapstructure:"candidates"`
	Best       string `yaml:"best" mapstructure:"best"`
	XLSX       string `yaml:"xlsx" mapstructure:"xlsx"`
	Manifest   string `yaml:"manifest" mapstructure:"manifest"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ASSIGNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("assign.distance", 0.5)
	v.SetDefault("assign.distance_unit", "mi")
	v.SetDefault("assign.elev_tol_ft", 500)
	v.SetDefault("assign.point_id_column", "station_id")
	v.SetDefault("assign.line_id_column", "segment_id")
	v.SetDefault("assign.filter", "")
	v.SetDefault("assign.check_elevation", true)
	v.SetDefault("assign.top_n", 1)
	v.SetDefault("assign.group_by", "line")
	v.SetDefault("assign.workers", 1)
	v.SetDefault("elevation.point_column", "station_elev_ft")
	v.SetDefault("elevation.line_min_column", "seg_min_elev_ft")
	v.SetDefault("elevation.line_max_column", "seg_max_elev_ft")
	v.SetDefault("elevation.dem_path", "")
	v.SetDefault("elevation.dem_epsg", 0)
	v.SetDefault("elevation.line_sample_step_m", 100)
	v.SetDefault("crs.target_epsg", 0)
	v.SetDefault("fetch.user_agent", "segment-assigner/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_second", 5)
	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("output.candidates", "candidates.csv")
	v.SetDefault("output.best", "best_match.csv")
	v.SetDefault("output.xlsx", "")
	v.SetDefault("output.manifest", "")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "assign",
// "serve", or "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch driver {
	case "", "none", "sqlite", "postgres", "postgresql", "pg":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, or none")
	}
	if (driver == "postgres" || driver == "postgresql" || driver == "pg") && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for store.driver "+driver)
	}

	switch mode {
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "runs":
		if driver == "" || driver == "none" {
			problems = append(problems, "store.driver is required to list runs")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Params converts the assign section into validated assignment parameters.
func (c AssignConfig) Params() (assign.Params, error) {
	g, err := assign.ParseGroupBy(c.GroupBy)
	if err != nil {
		return assign.Params{}, eris.Wrap(err, "config: assign.group_by")
	}
	p := assign.Params{
		Distance:       c.Distance,
		DistanceUnit:   c.DistanceUnit,
		ElevTolFt:      c.ElevTolFt,
		PointIDColumn:  c.PointIDColumn,
		LineIDColumn:   c.LineIDColumn,
		FilterExpr:     c.Filter,
		CheckElevation: c.CheckElevation,
		TopN:           c.TopN,
		GroupBy:        g,
		Workers:        c.Workers,
	}
	if err := p.Validate(); err != nil {
		return assign.Params{}, eris.Wrap(err, "config: assign")
	}
	return p, nil
}

// Pipeline returns the pipeline's view of the elevation section.
func (c ElevationConfig) Pipeline() pipeline.Elevation {
	return pipeline.Elevation{
		PointColumn:     c.PointColumn,
		LineMinColumn:   c.LineMinColumn,
		LineMaxColumn:   c.LineMaxColumn,
		DEMPath:         c.DEMPath,
		DEMEPSG:         c.DEMEPSG,
		DEMNoData:       c.DEMNoData,
		LineSampleStepM: c.LineSampleStepM,
	}
}

// Options returns the fetcher options for remote sources.
func (c FetchConfig) Options() fetcher.Options {
	return fetcher.Options{
		UserAgent:         c.UserAgent,
		Timeout:           time.Duration(c.TimeoutSecs) * time.Second,
		MaxRetries:        c.MaxRetries,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
