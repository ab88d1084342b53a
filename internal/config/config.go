// Package config loads territory-cli configuration from config.yaml and
// TERRITORY_* environment variables and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/territory-cli/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Territory  TerritoryConfig  `yaml:"territory" mapstructure:"territory"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// TerritoryConfig configures the inference engine.
type TerritoryConfig struct {
	RadiusMiles         float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
	MaxNeighbors        int     `yaml:"max_neighbors" mapstructure:"max_neighbors"`
	DominanceThreshold  float64 `yaml:"dominance_threshold" mapstructure:"dominance_threshold"`
	Workers             int     `yaml:"workers" mapstructure:"workers"`
	RequireActiveStatus bool    `yaml:"require_active_status" mapstructure:"require_active_status"`
}

// Params returns the scorer parameters.
func (t TerritoryConfig) Params() scorer.Params {
	return scorer.Params{
		RadiusMiles:        t.RadiusMiles,
		MaxNeighbors:       t.MaxNeighbors,
		DominanceThreshold: t.DominanceThreshold,
	}
}

// SourcesConfig locates the two inputs.
type SourcesConfig struct {
	ZipMaster       string `yaml:"zip_master" mapstructure:"zip_master"`
	RepActivity     string `yaml:"rep_activity" mapstructure:"rep_activity"`
	ZipMasterSheet  string `yaml:"zip_master_sheet" mapstructure:"zip_master_sheet"`
	ActivitySheet   string `yaml:"activity_sheet" mapstructure:"activity_sheet"`
	PadShortZips    bool   `yaml:"pad_short_zips" mapstructure:"pad_short_zips"`
	TempDir         string `yaml:"temp_dir" mapstructure:"temp_dir"`
	HTTPTimeoutSecs int    `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExportConfig enables file exporters. Empty paths are disabled.
type ExportConfig struct {
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	XLSXPath    string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	GeoJSONPath string `yaml:"geojson_path" mapstructure:"geojson_path"`
}

// StoreConfig configures the persistent assignment store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the query API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	APIToken       string   `yaml:"api_token" mapstructure:"api_token"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// MetricsConfig configures metric output for batch runs.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// MonitoringConfig configures run quality alerts.
type MonitoringConfig struct {
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MaxRejectedRatio   float64 `yaml:"max_rejected_ratio" mapstructure:"max_rejected_ratio"`
	MaxUnassignedRatio float64 `yaml:"max_unassigned_ratio" mapstructure:"max_unassigned_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file: an explicit path must exist, the default ./config.yaml is optional.
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TERRITORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

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

// SetDefaults registers every key so environment overrides apply even when
// the config file omits it.
func SetDefaults(v *viper.Viper) {
	def := scorer.DefaultParams()
	v.SetDefault("territory.radius_miles", def.RadiusMiles)
	v.SetDefault("territory.max_neighbors", def.MaxNeighbors)
	v.SetDefault("territory.dominance_threshold", def.DominanceThreshold)
	v.SetDefault("territory.workers", 0)
	v.SetDefault("territory.require_active_status", false)

	v.SetDefault("sources.zip_master", "")
	v.SetDefault("sources.rep_activity", "")
	v.SetDefault("sources.zip_master_sheet", "")
	v.SetDefault("sources.activity_sheet", "")
	v.SetDefault("sources.pad_short_zips", false)
	v.SetDefault("sources.temp_dir", "")
	v.SetDefault("sources.http_timeout_secs", 60)
	v.SetDefault("sources.user_agent", "territory-cli/1.0")

	v.SetDefault("export.csv_path", "")
	v.SetDefault("export.xlsx_path", "")
	v.SetDefault("export.geojson_path", "")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/territory.db")
	v.SetDefault("store.max_conns", 4)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.max_rejected_ratio", 0.05)
	v.SetDefault("monitoring.max_unassigned_ratio", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings a command needs. mode is one of "run",
// "serve", "migrate" or "lookup".
func (c *Config) Validate(mode string) error {
	var errs []string

	storeNeeded := true
	switch mode {
	case "run":
		if err := scorer.ValidateParams(c.Territory.Params()); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Territory.Workers < 0 {
			errs = append(errs, fmt.Sprintf("territory.workers must be >= 0, got %d", c.Territory.Workers))
		}
		if c.Sources.ZipMaster == "" {
			errs = append(errs, "sources.zip_master is required")
		}
		if c.Sources.RepActivity == "" {
			errs = append(errs, "sources.rep_activity is required")
		}
		if c.Sources.HTTPTimeoutSecs <= 0 {
			errs = append(errs, "sources.http_timeout_secs must be > 0")
		}
		for name, v := range map[string]float64{
			"monitoring.max_rejected_ratio":   c.Monitoring.MaxRejectedRatio,
			"monitoring.max_unassigned_ratio": c.Monitoring.MaxUnassignedRatio,
		} {
			if v < 0 || v > 1 {
				errs = append(errs, fmt.Sprintf("%s must be in [0, 1], got %g", name, v))
			}
		}
		storeNeeded = c.Store.Driver != "none"
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_burst must be >= 1 when rate limiting is enabled")
		}
	case "migrate", "lookup":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if storeNeeded {
		switch c.Store.Driver {
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "none":
			if mode != "run" {
				errs = append(errs, fmt.Sprintf("store.driver none is not supported by %s", mode))
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
