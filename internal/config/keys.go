package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ELICIT_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "ELICIT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "oracle.provider", typ: kString, env: "ELICIT_ORACLE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Provider },
	},
	{
		key: "oracle.base_url", typ: kString, env: "ELICIT_ORACLE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.BaseURL },
	},
	{
		key: "oracle.model", typ: kString, env: "ELICIT_ORACLE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Model },
	},
	{
		key: "oracle.embed_model", typ: kString, env: "ELICIT_ORACLE_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.EmbedModel },
	},
	{
		key: "oracle.api_key", typ: kString, env: "ELICIT_ORACLE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Oracle.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.APIKey },
	},
	{
		key: "oracle.timeout_seconds", typ: kInt, env: "ELICIT_ORACLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Oracle.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Oracle.TimeoutSeconds },
	},
	{
		key: "oracle.attempts", typ: kInt, env: "ELICIT_ORACLE_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Attempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Oracle.Attempts },
	},
	{
		key: "oracle.base_delay_ms", typ: kInt, env: "ELICIT_ORACLE_BASE_DELAY_MS",
		apply:   func(cfg *Config, v any) { cfg.Oracle.BaseDelayMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Oracle.BaseDelayMS },
	},
	{
		key: "oracle.rate_limit", typ: kFloat, env: "ELICIT_ORACLE_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Oracle.RateLimit = v.(float64) },
		extract: func(cfg Config) any { return cfg.Oracle.RateLimit },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ELICIT_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "cache.backend", typ: kString, env: "ELICIT_CACHE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Cache.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Backend },
	},
	{
		key: "cache.size", typ: kInt, env: "ELICIT_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Cache.Size = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.Size },
	},
	{
		key: "cache.redis_addr", typ: kString, env: "ELICIT_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisAddr },
	},
	{
		key: "scheduling.confidence_threshold", typ: kFloat, env: "ELICIT_CONFIDENCE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Scheduling.ConfidenceThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scheduling.ConfidenceThreshold },
	},
	{
		key: "scheduling.completion_threshold", typ: kFloat, env: "ELICIT_COMPLETION_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Scheduling.CompletionThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scheduling.CompletionThreshold },
	},
	{
		key: "log.level", typ: kString, env: "ELICIT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "ELICIT_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
