package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isolysis/isocover/internal/raster"
)

// Config holds the full application configuration.
type Config struct {
	Engine  EngineConfig        `yaml:"engine" mapstructure:"engine"`
	Rasters []raster.Descriptor `yaml:"rasters" mapstructure:"rasters"`
	Store   StoreConfig         `yaml:"store" mapstructure:"store"`
	Log     LogConfig           `yaml:"log" mapstructure:"log"`
}

// EngineConfig bounds analysis runs.
type EngineConfig struct {
	MaxArity    int `yaml:"max_arity" mapstructure:"max_arity"`
	MaxRegions  int `yaml:"max_regions" mapstructure:"max_regions"`
	Workers     int `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the report cache database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks configured bounds before a run.
func (c *Config) Validate() error {
	var problems []string

	if c.Engine.MaxArity < 2 || c.Engine.MaxArity > 8 {
		problems = append(problems, "engine.max_arity must be between 2 and 8")
	}
	if c.Engine.MaxRegions < 1 || c.Engine.MaxRegions > 10000 {
		problems = append(problems, "engine.max_regions must be between 1 and 10000")
	}
	if c.Engine.Workers < 1 || c.Engine.Workers > 64 {
		problems = append(problems, "engine.workers must be between 1 and 64")
	}
	if c.Engine.TimeoutSecs < 0 {
		problems = append(problems, "engine.timeout_secs must be >= 0")
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path is required")
	}

	seen := make(map[string]bool, len(c.Rasters))
	for _, r := range c.Rasters {
		if r.ID == "" || r.Path == "" {
			problems = append(problems, "rasters entries need both id and path")
			continue
		}
		if seen[r.ID] {
			problems = append(problems, "duplicate raster id "+r.ID)
		}
		seen[r.ID] = true
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ISOCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_arity", 3)
	v.SetDefault("engine.max_regions", 100)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.timeout_secs", 120)
	v.SetDefault("store.path", "isocover.db")
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
