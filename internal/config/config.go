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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Apollo     ApolloConfig     `yaml:"apollo" mapstructure:"apollo"`
	Proxycurl  ProxycurlConfig  `yaml:"proxycurl" mapstructure:"proxycurl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Meter      MeterConfig      `yaml:"meter" mapstructure:"meter"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the provider-result cache.
type CacheConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"` // memory, sqlite, redis
	Path           string `yaml:"path" mapstructure:"path"`       // sqlite file
	RedisAddr      string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix      string `yaml:"key_prefix" mapstructure:"key_prefix"`
	SweepSchedule  string `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	VolatileDays   int    `yaml:"volatile_days" mapstructure:"volatile_days"`
	LongLivedDays  int    `yaml:"long_lived_days" mapstructure:"long_lived_days"`
}

// GoogleConfig holds Google Places API settings (reviews and photos).
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApolloConfig holds Apollo contact-lookup settings. Apollo is the premium
// provider; its rate limit and invocation are tracked for cost accounting.
type ApolloConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// ProxycurlConfig holds Proxycurl professional-profile search settings.
type ProxycurlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings for deep research.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina search settings for social-profile discovery.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings for the insight step.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the CRM sync step.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// EnrichConfig configures orchestrator behavior.
type EnrichConfig struct {
	ProviderTimeoutSecs int `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	AttemptTimeoutSecs  int `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	MaxReviews          int `yaml:"max_reviews" mapstructure:"max_reviews"`
	MaxNewsItems        int `yaml:"max_news_items" mapstructure:"max_news_items"`
}

// MeterConfig configures the usage metering gate.
type MeterConfig struct {
	PlansPath          string  `yaml:"plans_path" mapstructure:"plans_path"`
	BaseCostUSD        float64 `yaml:"base_cost_usd" mapstructure:"base_cost_usd"`
	PremiumCostUSD     float64 `yaml:"premium_cost_usd" mapstructure:"premium_cost_usd"`
	DefaultPlan        string  `yaml:"default_plan" mapstructure:"default_plan"`
	DefaultQuota       int     `yaml:"default_quota" mapstructure:"default_quota"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("NETWORKBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "network-buddy.db")
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "network-buddy-cache.db")
	v.SetDefault("cache.key_prefix", "nb:")
	v.SetDefault("cache.sweep_schedule", "0 3 * * *")
	v.SetDefault("cache.volatile_days", 7)
	v.SetDefault("cache.long_lived_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("apollo.rps", 2)
	v.SetDefault("proxycurl.base_url", "https://nubela.co/proxycurl/api")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rps", 5)
	v.SetDefault("enrich.provider_timeout_secs", 20)
	v.SetDefault("enrich.attempt_timeout_secs", 90)
	v.SetDefault("enrich.max_reviews", 5)
	v.SetDefault("enrich.max_news_items", 5)
	v.SetDefault("meter.base_cost_usd", 0.05)
	v.SetDefault("meter.premium_cost_usd", 0.10)
	v.SetDefault("meter.default_plan", "free")
	v.SetDefault("meter.default_quota", 10)

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
