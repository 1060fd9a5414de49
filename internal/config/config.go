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
	GraphQL    GraphQLConfig    `yaml:"graphql" mapstructure:"graphql"`
	Pagination PaginationConfig `yaml:"pagination" mapstructure:"pagination"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GraphQLConfig configures the region GraphQL API client.
type GraphQLConfig struct {
	URL         string      `yaml:"url" mapstructure:"url"`
	Token       string      `yaml:"token" mapstructure:"token"`
	TimeoutSecs int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures retries of transient GraphQL failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// PaginationConfig configures listing accumulation.
type PaginationConfig struct {
	// PageSize is the default page size for every listing.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// Concurrency bounds parallel page fetches within one listing.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MaxPages caps the page count a backend may report for one listing.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// PageSizes overrides PageSize per listing (e.g. regions: 25).
	PageSizes map[string]int `yaml:"page_sizes" mapstructure:"page_sizes"`
}

// PageSizeFor returns the configured page size for a listing.
func (p PaginationConfig) PageSizeFor(listing string) int {
	if n, ok := p.PageSizes[listing]; ok && n > 0 {
		return n
	}
	return p.PageSize
}

// StoreConfig selects the backend serving listings and user state.
type StoreConfig struct {
	// Driver is one of graphql, postgres, sqlite.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; a named file must
// exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("REGION_STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("graphql.url", "http://localhost:8008/graphql")
	v.SetDefault("graphql.timeout_secs", 30)
	v.SetDefault("graphql.rate_limit", 20.0)
	v.SetDefault("graphql.retry.max_attempts", 3)
	v.SetDefault("graphql.retry.initial_backoff_ms", 250)
	v.SetDefault("graphql.retry.max_backoff_ms", 10000)
	v.SetDefault("graphql.retry.jitter", 0.2)
	v.SetDefault("pagination.page_size", 100)
	v.SetDefault("pagination.concurrency", 4)
	v.SetDefault("pagination.max_pages", 10000)
	v.SetDefault("store.driver", "graphql")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrapf(err, "config: read %s", v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values Load cannot default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "graphql":
		if c.GraphQL.URL == "" {
			return eris.New("config: graphql.url is required for the graphql driver")
		}
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for the %s driver", c.Store.Driver)
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Pagination.PageSize < 1 {
		return eris.New("config: pagination.page_size must be at least 1")
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
