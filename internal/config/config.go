// Package config loads application configuration and initializes logging.
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
	Warehouse  WarehouseConfig  `yaml:"warehouse" mapstructure:"warehouse"`
	Relational RelationalConfig `yaml:"relational" mapstructure:"relational"`
	API        APIConfig        `yaml:"api" mapstructure:"api"`
	CSV        CSVConfig        `yaml:"csv" mapstructure:"csv"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// WarehouseConfig configures the dimensional warehouse connection.
type WarehouseConfig struct {
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// RelationalConfig configures the transactional source database.
type RelationalConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// APIConfig configures the opinions REST source. A missing base URL or
// endpoint is not fatal: the extractor degrades to an empty result.
type APIConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	Key         string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// CSVConfig holds one path per delimited source file.
type CSVConfig struct {
	Products       string `yaml:"products" mapstructure:"products"`
	Clients        string `yaml:"clients" mapstructure:"clients"`
	Sources        string `yaml:"sources" mapstructure:"sources"`
	WebReviews     string `yaml:"web_reviews" mapstructure:"web_reviews"`
	Surveys        string `yaml:"surveys" mapstructure:"surveys"`
	SocialComments string `yaml:"social_comments" mapstructure:"social_comments"`
}

// ServerConfig configures the embedded comments API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("OPINIONES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("api.endpoint", "/api/comments")
	v.SetDefault("api.timeout_secs", 15)
	v.SetDefault("api.rate_per_sec", 5)
	v.SetDefault("csv.products", "data/products.csv")
	v.SetDefault("csv.clients", "data/clients.csv")
	v.SetDefault("csv.sources", "data/fuente_datos.csv")
	v.SetDefault("csv.web_reviews", "data/web_reviews.csv")
	v.SetDefault("csv.surveys", "data/surveys_part1.csv")
	v.SetDefault("csv.social_comments", "data/social_comments.csv")

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
