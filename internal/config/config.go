package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bouwbuddy/bouwbuddy/internal/composer"
)

type Config struct {
	Telegram   TelegramConfig
	Summarizer SummarizerConfig
	Composer   ComposerConfig
	Storage    StorageConfig
	Server     ServerConfig
	Schedule   ScheduleConfig
	Log        LogConfig
}

type TelegramConfig struct {
	Token string
}

type SummarizerConfig struct {
	Backend          string
	Model            string
	Timeout          time.Duration
	OpenRouterAPIKey string
	GeminiAPIKey     string
	OllamaBaseURL    string
}

type ComposerConfig struct {
	// MaxFieldRunes caps free-text fields in the prompt. 0 disables the cap.
	MaxFieldRunes int
}

type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver  string
	DataDir string
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type ScheduleConfig struct {
	DailyAt string
	// ChatIDs is a comma separated list of chats that get the daily push.
	ChatIDs string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Summarizer: SummarizerConfig{
			Backend:       "openrouter",
			Timeout:       90 * time.Second,
			OllamaBaseURL: "http://localhost:11434",
		},
		Composer: ComposerConfig{
			MaxFieldRunes: composer.DefaultMaxFieldRunes,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Schedule: ScheduleConfig{
			DailyAt: "18:00",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/bouwbuddy/config.yaml, then applies BOUWBUDDY_*
// environment overrides. Load does not check for secrets; commands that
// need them call RequireBot or RequireSummarizer.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// ConfigurationError reports a required setting that is missing or unusable.
type ConfigurationError struct {
	Key    string
	EnvVar string
	Reason string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("missing required config: %s", e.Key)
	if e.Reason != "" {
		msg = fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
	}
	if e.EnvVar != "" {
		msg += fmt.Sprintf(". Set it via environment variable %s or in %s", e.EnvVar, configFilePath())
	}
	return msg
}

// RequireBot checks everything the Telegram bot needs to start.
func (c Config) RequireBot() error {
	if c.Telegram.Token == "" {
		return missing("telegram.token")
	}
	return c.RequireSummarizer()
}

// RequireSummarizer checks that the selected summarizer backend is usable.
func (c Config) RequireSummarizer() error {
	switch strings.ToLower(c.Summarizer.Backend) {
	case "openrouter", "":
		if c.Summarizer.OpenRouterAPIKey == "" {
			return missing("summarizer.openrouter_api_key")
		}
	case "gemini":
		if c.Summarizer.GeminiAPIKey == "" {
			return missing("summarizer.gemini_api_key")
		}
	case "ollama":
		if c.Summarizer.OllamaBaseURL == "" {
			return missing("summarizer.ollama_url")
		}
	default:
		return &ConfigurationError{
			Key:    "summarizer.backend",
			Reason: fmt.Sprintf("unknown backend %q (want openrouter, gemini or ollama)", c.Summarizer.Backend),
		}
	}
	return nil
}

// ReportChatIDs parses Schedule.ChatIDs.
func (c Config) ReportChatIDs() ([]int64, error) {
	var ids []int64
	for _, f := range strings.Split(c.Schedule.ChatIDs, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, &ConfigurationError{Key: "schedule.chat_ids", Reason: fmt.Sprintf("%q is not a chat id", f)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func missing(key string) error {
	for _, s := range specs {
		if s.key == key {
			return &ConfigurationError{Key: key, EnvVar: s.env}
		}
	}
	return &ConfigurationError{Key: key}
}
