package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key string
	typ keyType
	env string
	// legacyEnv is also read when env is unset.
	legacyEnv string
	secret    bool
	apply     func(cfg *Config, v any)
	extract   func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "telegram.token", typ: kString, env: "BOUWBUDDY_TELEGRAM_TOKEN", legacyEnv: "TELEGRAM_BOT_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Telegram.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.Token },
	},
	{
		key: "summarizer.backend", typ: kString, env: "BOUWBUDDY_SUMMARIZER_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Summarizer.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Summarizer.Backend },
	},
	{
		key: "summarizer.model", typ: kString, env: "BOUWBUDDY_SUMMARIZER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Summarizer.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Summarizer.Model },
	},
	{
		key: "summarizer.timeout", typ: kDuration, env: "BOUWBUDDY_SUMMARIZER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Summarizer.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Summarizer.Timeout },
	},
	{
		key: "summarizer.openrouter_api_key", typ: kString, env: "BOUWBUDDY_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Summarizer.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Summarizer.OpenRouterAPIKey },
	},
	{
		key: "summarizer.gemini_api_key", typ: kString, env: "BOUWBUDDY_GEMINI_API_KEY", legacyEnv: "GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Summarizer.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Summarizer.GeminiAPIKey },
	},
	{
		key: "summarizer.ollama_url", typ: kString, env: "BOUWBUDDY_OLLAMA_URL",
		apply:   func(cfg *Config, v any) { cfg.Summarizer.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Summarizer.OllamaBaseURL },
	},
	{
		key: "composer.max_field_runes", typ: kInt, env: "BOUWBUDDY_COMPOSER_MAX_FIELD_RUNES",
		apply:   func(cfg *Config, v any) { cfg.Composer.MaxFieldRunes = v.(int) },
		extract: func(cfg Config) any { return cfg.Composer.MaxFieldRunes },
	},
	{
		key: "storage.driver", typ: kString, env: "BOUWBUDDY_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BOUWBUDDY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "BOUWBUDDY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "BOUWBUDDY_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "schedule.daily_at", typ: kString, env: "BOUWBUDDY_SCHEDULE_DAILY_AT",
		apply:   func(cfg *Config, v any) { cfg.Schedule.DailyAt = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.DailyAt },
	},
	{
		key: "schedule.chat_ids", typ: kString, env: "BOUWBUDDY_SCHEDULE_CHAT_IDS",
		apply:   func(cfg *Config, v any) { cfg.Schedule.ChatIDs = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.ChatIDs },
	},
	{
		key: "log.level", typ: kString, env: "BOUWBUDDY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// applyBackend copies file values into cfg. Secrets are read from the file
// as well, since it is created with mode 0600.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
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
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := s.env, os.Getenv(s.env)
		if raw == "" && s.legacyEnv != "" {
			name, raw = s.legacyEnv, os.Getenv(s.legacyEnv)
		}
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
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
