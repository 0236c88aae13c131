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
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Geocode     GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Scrape      ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Orchestrate OrchestrateConfig `yaml:"orchestrate" mapstructure:"orchestrate"`
	Live        LiveConfig        `yaml:"live" mapstructure:"live"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds LLM provider settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// GeocodeConfig holds geocoding provider settings and the Germany bounding
// box used to validate results.
type GeocodeConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	MinLat  float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat  float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon  float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon  float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// StoreConfig configures the external store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres | sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ScrapeConfig configures the scraper framework.
type ScrapeConfig struct {
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxEmptyPages    int    `yaml:"max_empty_pages" mapstructure:"max_empty_pages"`
	RequestsPerSec   int    `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	ListingBatchSize int    `yaml:"listing_batch_size" mapstructure:"listing_batch_size"`
}

// EnrichConfig configures the LLM enrichment engine.
type EnrichConfig struct {
	BatchSize         int `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency       int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries        int `yaml:"max_retries" mapstructure:"max_retries"`
	MaxDelaySecs      int `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
	CacheSaveInterval int `yaml:"cache_save_interval" mapstructure:"cache_save_interval"`
}

// OrchestrateConfig configures the batch orchestrators.
type OrchestrateConfig struct {
	ScrapeWorkers int `yaml:"scrape_workers" mapstructure:"scrape_workers"`
	EnrichWorkers int `yaml:"enrich_workers" mapstructure:"enrich_workers"`
	ChunkRetries  int `yaml:"chunk_retries" mapstructure:"chunk_retries"`
}

// LiveConfig configures the live polling loop.
type LiveConfig struct {
	IntervalSecs      int    `yaml:"interval_secs" mapstructure:"interval_secs"`
	ArticleCap        int    `yaml:"article_cap" mapstructure:"article_cap"`
	LockFile          string `yaml:"lock_file" mapstructure:"lock_file"`
	StatusAddr        string `yaml:"status_addr" mapstructure:"status_addr"`
	BackoffThreshold  int    `yaml:"backoff_threshold" mapstructure:"backoff_threshold"`
	BackoffThreshold2 int    `yaml:"backoff_threshold2" mapstructure:"backoff_threshold2"`
}

// PathsConfig holds cache and data directories.
type PathsConfig struct {
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`
}

// PipelineConfig holds run-level settings.
type PipelineConfig struct {
	RunTag        string `yaml:"run_tag" mapstructure:"run_tag"`
	PromptVersion string `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BLAULICHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("geocode.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocode.min_lat", 47.27)
	v.SetDefault("geocode.max_lat", 55.06)
	v.SetDefault("geocode.min_lon", 5.87)
	v.SetDefault("geocode.max_lon", 15.04)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.batch_size", 250)
	v.SetDefault("scrape.concurrency", 12)
	v.SetDefault("scrape.max_retries", 4)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.user_agent", "blaulicht-cli/1.0")
	v.SetDefault("scrape.max_empty_pages", 3)
	v.SetDefault("scrape.requests_per_sec", 8)
	v.SetDefault("scrape.listing_batch_size", 5)
	v.SetDefault("enrich.batch_size", 6)
	v.SetDefault("enrich.concurrency", 30)
	v.SetDefault("enrich.max_retries", 4)
	v.SetDefault("enrich.max_delay_secs", 60)
	v.SetDefault("enrich.cache_save_interval", 500)
	v.SetDefault("orchestrate.scrape_workers", 8)
	v.SetDefault("orchestrate.enrich_workers", 4)
	v.SetDefault("orchestrate.chunk_retries", 3)
	v.SetDefault("live.interval_secs", 900)
	v.SetDefault("live.article_cap", 50)
	v.SetDefault("live.lock_file", "blaulicht-live.lock")
	v.SetDefault("live.status_addr", "127.0.0.1:8090")
	v.SetDefault("live.backoff_threshold", 3)
	v.SetDefault("live.backoff_threshold2", 6)
	v.SetDefault("paths.cache_dir", "cache")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("pipeline.run_tag", "v2")
	v.SetDefault("pipeline.prompt_version", "p3")

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
