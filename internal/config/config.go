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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Outreach  OutreachConfig  `yaml:"outreach" mapstructure:"outreach"`
	Instantly InstantlyConfig `yaml:"instantly" mapstructure:"instantly"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ReportModel  string `yaml:"report_model" mapstructure:"report_model"`
	MessageModel string `yaml:"message_model" mapstructure:"message_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FetchConfig configures the website content fetcher.
type FetchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// SearchConfig configures the public web-search fallback pass.
type SearchConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int     `yaml:"retries" mapstructure:"retries"`
	BackoffMs      int     `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	MaxResults     int     `yaml:"max_results" mapstructure:"max_results"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// EnrichConfig configures the enrichment orchestrator.
type EnrichConfig struct {
	// TimeoutSecs bounds one lead's full enrichment run, LLM call included.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// MaxWebsiteChars caps extracted website text fed into the prompt.
	MaxWebsiteChars int `yaml:"max_website_chars" mapstructure:"max_website_chars"`
}

// BatchConfig configures bulk enrichment.
type BatchConfig struct {
	GroupSize int `yaml:"group_size" mapstructure:"group_size"`
}

// OutreachConfig configures the queue drain and send channels.
type OutreachConfig struct {
	UserID           string `yaml:"user_id" mapstructure:"user_id"`
	TwilioSID        string `yaml:"twilio_sid" mapstructure:"twilio_sid"`
	TwilioToken      string `yaml:"twilio_token" mapstructure:"twilio_token"`
	TwilioFrom       string `yaml:"twilio_from" mapstructure:"twilio_from"`
	ResendKey        string `yaml:"resend_key" mapstructure:"resend_key"`
	ResendFrom       string `yaml:"resend_from" mapstructure:"resend_from"`
	PushRetries      int    `yaml:"push_retries" mapstructure:"push_retries"`
	CircuitThreshold int    `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// InstantlyConfig holds campaign-platform push settings.
type InstantlyConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	CampaignID string `yaml:"campaign_id" mapstructure:"campaign_id"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.report_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.message_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; Lead2CloseBot/1.0)")
	v.SetDefault("fetch.max_body_bytes", 512*1024)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.retries", 1)
	v.SetDefault("search.backoff_ms", 500)
	v.SetDefault("search.max_results", 6)
	v.SetDefault("search.requests_per_sec", 0.5)
	v.SetDefault("enrich.timeout_secs", 45)
	v.SetDefault("enrich.max_website_chars", 8000)
	v.SetDefault("batch.group_size", 3)
	v.SetDefault("outreach.push_retries", 3)
	v.SetDefault("outreach.circuit_threshold", 5)
	v.SetDefault("outreach.circuit_reset_secs", 30)
	v.SetDefault("instantly.base_url", "https://api.instantly.ai")

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
