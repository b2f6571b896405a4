package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Profile   ProfileConfig   `yaml:"profile" mapstructure:"profile"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures the recommendation stages.
type PipelineConfig struct {
	StageTimeout           time.Duration     `yaml:"stage_timeout" mapstructure:"stage_timeout"`
	NeutralConfidence      float64           `yaml:"neutral_confidence" mapstructure:"neutral_confidence"`
	TopN                   int               `yaml:"top_n" mapstructure:"top_n"`
	ReportTopN             int               `yaml:"report_top_n" mapstructure:"report_top_n"`
	UnderutilizedThreshold float64           `yaml:"underutilized_threshold" mapstructure:"underutilized_threshold"`
	MaxCandidates          int               `yaml:"max_candidates" mapstructure:"max_candidates"`
	Filter                 string            `yaml:"filter" mapstructure:"filter"`
	PromptsFile            string            `yaml:"prompts_file" mapstructure:"prompts_file"`
	Temperature            TemperatureConfig `yaml:"temperature" mapstructure:"temperature"`
}

// TemperatureConfig sets the sampling temperature per stage.
type TemperatureConfig struct {
	Pattern  float64 `yaml:"pattern" mapstructure:"pattern"`
	Affinity float64 `yaml:"affinity" mapstructure:"affinity"`
	Scoring  float64 `yaml:"scoring" mapstructure:"scoring"`
	Report   float64 `yaml:"report" mapstructure:"report"`
}

// ProfileConfig selects where customer profiles come from.
type ProfileConfig struct {
	Source      string `yaml:"source" mapstructure:"source"`
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the Redis result cache. An empty URL disables it.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RetryConfig configures retries of reasoning calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// CircuitConfig configures the reasoning circuit breaker.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// TelemetryConfig configures tracing. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" mapstructure:"service_name"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("XSELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.key", "XSELL_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.requests_per_second", 5)
	v.SetDefault("anthropic.burst", 5)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("pipeline.stage_timeout", "45s")
	v.SetDefault("pipeline.neutral_confidence", 0.5)
	v.SetDefault("pipeline.top_n", 0)
	v.SetDefault("pipeline.report_top_n", 5)
	v.SetDefault("pipeline.underutilized_threshold", 70)
	v.SetDefault("pipeline.max_candidates", 7)
	v.SetDefault("pipeline.filter", "")
	v.SetDefault("pipeline.prompts_file", "")
	v.SetDefault("pipeline.temperature.pattern", 0.3)
	v.SetDefault("pipeline.temperature.affinity", 0.3)
	v.SetDefault("pipeline.temperature.scoring", 0.2)
	v.SetDefault("pipeline.temperature.report", 0.4)
	v.SetDefault("profile.source", "csv")
	v.SetDefault("profile.csv_path", "customer_data.csv")
	v.SetDefault("profile.database_url", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "xsell.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "1s")
	v.SetDefault("retry.max_backoff", "8s")
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout", "30s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "xsell-cli")
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

// Validation modes for Config.Validate.
const (
	// ModePipeline runs stages against the Anthropic API.
	ModePipeline = "pipeline"
	// ModeOffline runs stages against the deterministic stub service.
	ModeOffline = "offline"
	// ModeImport loads profiles into Postgres.
	ModeImport = "import"
	// ModeHistory reads the run store.
	ModeHistory = "history"
	// ModeServe checks HTTP server settings.
	ModeServe = "serve"
)

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case ModePipeline, ModeOffline:
		if mode == ModePipeline && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required (set XSELL_ANTHROPIC_KEY or ANTHROPIC_API_KEY)")
		}
		problems = append(problems, c.profileProblems()...)
		problems = append(problems, c.storeProblems()...)
		p := c.Pipeline
		if p.StageTimeout < 0 {
			problems = append(problems, "pipeline.stage_timeout must not be negative")
		}
		if p.NeutralConfidence < 0 || p.NeutralConfidence > 1 {
			problems = append(problems, "pipeline.neutral_confidence must be within [0,1]")
		}
		if p.MaxCandidates < 0 {
			problems = append(problems, "pipeline.max_candidates must not be negative")
		}
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			problems = append(problems, "batch.max_concurrent must be between 1 and 50")
		}
	case ModeImport:
		if c.Profile.DatabaseURL == "" {
			problems = append(problems, "profile.database_url is required for import")
		}
	case ModeHistory:
		if c.Store.Driver == "none" {
			problems = append(problems, "store.driver is none; no run history is kept")
		}
		problems = append(problems, c.storeProblems()...)
	case ModeServe:
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) profileProblems() []string {
	switch c.Profile.Source {
	case "csv":
		if c.Profile.CSVPath == "" {
			return []string{"profile.csv_path is required for the csv source"}
		}
	case "postgres":
		if c.Profile.DatabaseURL == "" {
			return []string{"profile.database_url is required for the postgres source"}
		}
	default:
		return []string{"profile.source must be csv or postgres"}
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the " + c.Store.Driver + " store"}
		}
	default:
		return []string{"store.driver must be sqlite, postgres or none"}
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
