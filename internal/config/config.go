package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nthpaul/stock-sentiment-dash/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Posts      PostsConfig      `mapstructure:"posts"`
	Prices     PricesConfig     `mapstructure:"prices"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// CacheConfig governs the on-disk post cache.
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// PostsConfig covers the social-post search API.
type PostsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BearerToken    string        `mapstructure:"bearer_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PricesConfig covers the daily close-price source.
type PricesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PeriodDays     int           `mapstructure:"period_days"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ClassifierConfig points at the sentiment inference endpoint.
type ClassifierConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for snapshots.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// WatchConfig governs the refresh loop cadence.
type WatchConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// Missing .env is fine, matching python-dotenv semantics.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SENTIMENTDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bearer token historically lived in TWITTER_BEARER_TOKEN.
	_ = v.BindEnv("posts.bearer_token", "SENTIMENTDASH_POSTS_BEARER_TOKEN", "TWITTER_BEARER_TOKEN")
	_ = v.BindEnv("classifier.token", "SENTIMENTDASH_CLASSIFIER_TOKEN", "HF_API_TOKEN")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sentimentdash")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.max_entries", 64)

	v.SetDefault("posts.base_url", "https://api.twitter.com/2")
	v.SetDefault("posts.request_timeout", "15s")
	v.SetDefault("posts.min_interval", "2s")
	v.SetDefault("posts.user_agent", "sentimentdash/1.0")

	v.SetDefault("prices.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.period_days", 7)
	v.SetDefault("prices.request_timeout", "10s")
	v.SetDefault("prices.user_agent", "sentimentdash/1.0")

	v.SetDefault("classifier.endpoint", "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english")
	v.SetDefault("classifier.request_timeout", "30s")

	v.SetDefault("watch.interval", "15m")
	v.SetDefault("watch.align_to_bucket", true)
	v.SetDefault("watch.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be greater than zero")
	}
	if c.Prices.PeriodDays <= 0 {
		return fmt.Errorf("prices.period_days must be greater than zero")
	}
	if c.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint is required")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolvePeriodDays returns either the CLI override or config default.
func (c *Config) ResolvePeriodDays(override int) int {
	if override > 0 {
		return override
	}
	return c.Prices.PeriodDays
}
