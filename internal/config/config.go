package config

import (
	"errors"
	"fmt"
	"time"
)

// Providers understood by oracle.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Cache backends understood by cache.backend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Server     ServerConfig
	Oracle     OracleConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Scheduling SchedulingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OracleConfig struct {
	Provider       string
	BaseURL        string
	Model          string
	EmbedModel     string
	APIKey         string
	TimeoutSeconds int
	Attempts       int
	BaseDelayMS    int
	RateLimit      float64 // requests per second, 0 disables limiting
}

// Timeout is the per-call deadline of a single oracle attempt.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// BaseDelay is the first retry backoff; later attempts double it.
func (o OracleConfig) BaseDelay() time.Duration {
	return time.Duration(o.BaseDelayMS) * time.Millisecond
}

type StorageConfig struct {
	DataDir string
}

type CacheConfig struct {
	Backend   string
	Size      int
	RedisAddr string
}

type SchedulingConfig struct {
	ConfidenceThreshold float64
	CompletionThreshold float64
}

type LogConfig struct {
	Level string
	File  string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Oracle: OracleConfig{
			Provider:       ProviderOpenAI,
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbedModel:     "text-embedding-3-small",
			TimeoutSeconds: 30,
			Attempts:       3,
			BaseDelayMS:    800,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			Backend:   CacheMemory,
			Size:      256,
			RedisAddr: "localhost:6379",
		},
		Scheduling: SchedulingConfig{
			ConfidenceThreshold: 0.6,
			CompletionThreshold: 0.5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/elicit/config.yaml, then applies ELICIT_* environment
// variables on top. Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every out-of-range value in cfg.
func Validate(cfg Config) error {
	var errs []error
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	switch cfg.Oracle.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unsupported oracle.provider %q", cfg.Oracle.Provider))
	}
	if cfg.Oracle.Attempts < 1 {
		errs = append(errs, fmt.Errorf("oracle.attempts must be at least 1"))
	}
	if cfg.Oracle.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("oracle.timeout_seconds must be at least 1"))
	}
	if cfg.Oracle.BaseDelayMS < 0 || cfg.Oracle.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("oracle.base_delay_ms and oracle.rate_limit must not be negative"))
	}
	switch cfg.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported cache.backend %q", cfg.Cache.Backend))
	}
	if cfg.Cache.Size < 1 {
		errs = append(errs, fmt.Errorf("cache.size must be at least 1"))
	}
	if t := cfg.Scheduling.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("scheduling.confidence_threshold %v outside [0,1]", t))
	}
	if t := cfg.Scheduling.CompletionThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("scheduling.completion_threshold %v outside [0,1]", t))
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
