package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = eris.New("config: invalid configuration")

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	DryRun    bool            `yaml:"dry_run" mapstructure:"dry_run"`
}

// StoreConfig selects the run and domain-state store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, memory
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Model           string `yaml:"model" mapstructure:"model"`
	EscalationModel string `yaml:"escalation_model" mapstructure:"escalation_model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds the service account and sheet routing defaults.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	SheetID         string `yaml:"sheet_id" mapstructure:"sheet_id"`
	ShareWith       string `yaml:"share_with" mapstructure:"share_with"`
	FolderID        string `yaml:"folder_id" mapstructure:"folder_id"`
	ShareNotify     bool   `yaml:"share_notify" mapstructure:"share_notify"`
}

// PipelineConfig configures enrichment and fan-out.
type PipelineConfig struct {
	MaxPages            int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth            int     `yaml:"max_depth" mapstructure:"max_depth"`
	ExtractPages        int     `yaml:"extract_pages" mapstructure:"extract_pages"`
	PageConcurrency     int     `yaml:"page_concurrency" mapstructure:"page_concurrency"`
	DomainConcurrency   int     `yaml:"domain_concurrency" mapstructure:"domain_concurrency"`
	MaxBusinesses       int     `yaml:"max_businesses" mapstructure:"max_businesses"`
	EscalationThreshold float64 `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	PhoneRegion         string  `yaml:"phone_region" mapstructure:"phone_region"`
	SheetName           string  `yaml:"sheet_name" mapstructure:"sheet_name"`
	ICP                 string  `yaml:"icp" mapstructure:"icp"`
}

// CrawlConfig configures crawl polling and path filters.
type CrawlConfig struct {
	PollIntervalSecs        int      `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	DelaySecs               int      `yaml:"delay_secs" mapstructure:"delay_secs"`
	PollTimeoutSecs         int      `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	IncludePaths            []string `yaml:"include_paths" mapstructure:"include_paths"`
	ExcludePaths            []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	CircuitFailureThreshold int      `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int      `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// LLMConfig configures the model adapter.
type LLMConfig struct {
	Mock              bool        `yaml:"mock" mapstructure:"mock"`
	RequestsPerSecond float64     `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int         `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs       int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry             RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig holds retry settings for provider calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Firecrawl FirecrawlPricing        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Unprefixed environment names accepted alongside the LEADGEN_ ones.
var envAliases = map[string]string{
	"firecrawl.key":           "FIRECRAWL_API_KEY",
	"anthropic.key":           "ANTHROPIC_API_KEY",
	"google.credentials_path": "GOOGLE_APPLICATION_CREDENTIALS",
	"google.sheet_id":         "SHEET_ID",
	"google.share_with":       "SHEET_SHARE_WITH",
	"google.folder_id":        "SHEET_FOLDER_ID",
	"google.share_notify":     "SHEET_SHARE_NOTIFY",
	"dry_run":                 "DRY_RUN",
	"llm.mock":                "MOCK_LLM",
	"server.port":             "PORT",
}

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "LEADGEN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.escalation_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("google.share_notify", false)
	v.SetDefault("pipeline.max_pages", 80)
	v.SetDefault("pipeline.max_depth", 2)
	v.SetDefault("pipeline.extract_pages", 12)
	v.SetDefault("pipeline.page_concurrency", 6)
	v.SetDefault("pipeline.domain_concurrency", 1)
	v.SetDefault("pipeline.max_businesses", 25)
	v.SetDefault("pipeline.escalation_threshold", 0.6)
	v.SetDefault("pipeline.phone_region", "US")
	v.SetDefault("pipeline.sheet_name", "Leads")
	v.SetDefault("crawl.poll_interval_secs", 3)
	v.SetDefault("crawl.delay_secs", 2)
	v.SetDefault("crawl.poll_timeout_secs", 0)
	v.SetDefault("crawl.circuit_failure_threshold", 5)
	v.SetDefault("crawl.circuit_reset_secs", 60)
	v.SetDefault("llm.mock", false)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.timeout_secs", 0)
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.initial_backoff_ms", 500)
	v.SetDefault("llm.retry.max_backoff_ms", 15000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dry_run", false)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)

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

// Validate checks that the settings a command needs are present. Mode is
// "run" or "serve". A dry run needs only the crawl and model credentials.
func (c *Config) Validate(mode string, dryRun bool) error {
	var missing []string

	switch mode {
	case "run":
		if c.Firecrawl.Key == "" {
			missing = append(missing, "firecrawl.key (FIRECRAWL_API_KEY) is required")
		}
		if !c.LLM.Mock && c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key (ANTHROPIC_API_KEY) is required")
		}
		if !dryRun && c.Google.CredentialsPath == "" {
			missing = append(missing, "google.credentials_path (GOOGLE_APPLICATION_CREDENTIALS) is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
		}
	default:
		return eris.Wrapf(ErrInvalid, "unknown validation mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "memory", "":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	default:
		missing = append(missing, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Pipeline.PageConcurrency < 1 {
		missing = append(missing, "pipeline.page_concurrency must be at least 1")
	}
	if c.Pipeline.DomainConcurrency < 1 {
		missing = append(missing, "pipeline.domain_concurrency must be at least 1")
	}
	if c.Pipeline.EscalationThreshold < 0 || c.Pipeline.EscalationThreshold > 1 {
		missing = append(missing, "pipeline.escalation_threshold must be between 0 and 1")
	}

	if len(missing) > 0 {
		return eris.Wrap(ErrInvalid, strings.Join(missing, "; "))
	}
	return nil
}

// ShareList returns the configured share-with emails.
func (c *Config) ShareList() []string {
	return SplitList(c.Google.ShareWith)
}

var listSep = regexp.MustCompile(`[,;\s]+`)

// SplitList splits a comma, semicolon, or whitespace separated list and drops
// empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range listSep.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
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
