package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	EBird    EBirdConfig    `yaml:"ebird" mapstructure:"ebird"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Spatial  SpatialConfig  `yaml:"spatial" mapstructure:"spatial"`
	Rarity   RarityConfig   `yaml:"rarity" mapstructure:"rarity"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// EBirdConfig holds eBird API credentials and client tuning.
type EBirdConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// BoundaryConfig configures the county geometry sources.
type BoundaryConfig struct {
	PagesBaseURL  string `yaml:"pages_base_url" mapstructure:"pages_base_url"`
	TigerURL      string `yaml:"tiger_url" mapstructure:"tiger_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SpatialConfig configures the bundled county index.
type SpatialConfig struct {
	IndexPath string `yaml:"index_path" mapstructure:"index_path"`
}

// RarityConfig configures the species classification table.
type RarityConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
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
	v.SetEnvPrefix("RARITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ebird.base_url", "https://api.ebird.org/v2")
	v.SetDefault("ebird.rate_limit", 5.0)
	v.SetDefault("ebird.cache_ttl_minutes", 15)
	v.SetDefault("boundary.pages_base_url", "https://mobile-rarity-mapper.pages.dev")
	v.SetDefault("boundary.tiger_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/State_County/MapServer/1/query")
	v.SetDefault("boundary.cache_ttl_hours", 24)
	v.SetDefault("spatial.index_path", "data/county_index.json")
	v.SetDefault("rarity.table_path", "data/rarity_codes.yaml")

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

// Validate checks the fields a given mode requires. Modes: "serve" (API
// server), "query" (CLI commands that hit eBird), "indexbuild" (offline index
// construction, no credentials needed).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.EBird.APIKey == "" {
			problems = append(problems, "ebird.api_key is required")
		}
		if c.Spatial.IndexPath == "" {
			problems = append(problems, "spatial.index_path is required")
		}
	case "query":
		if c.EBird.APIKey == "" {
			problems = append(problems, "ebird.api_key is required")
		}
	case "indexbuild":
		// No required credentials.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.EBird.RateLimit < 0 {
		problems = append(problems, "ebird.rate_limit must be >= 0")
	}
	if c.EBird.CacheTTLMinutes < 0 {
		problems = append(problems, "ebird.cache_ttl_minutes must be >= 0")
	}
	if c.Boundary.CacheTTLHours < 0 {
		problems = append(problems, "boundary.cache_ttl_hours must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
