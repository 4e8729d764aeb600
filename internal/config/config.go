// Package config loads and validates the scribrbot configuration from a YAML
// file, SCRIBR_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g. SCRIBR_TELEGRAM_TOKEN.
const EnvPrefix = "SCRIBR"

// Config holds every process-wide setting. It is built once at start-up and
// passed by reference to the components that need it.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// WebhookSecret, when set, must match the X-Telegram-Bot-Api-Secret-Token header.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// BotUsername lets "/summ@username" address this bot in groups. Filled from getMe when empty.
	BotUsername string `mapstructure:"bot_username"`
}

// ServerConfig controls the inbound HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	WebhookPath     string        `mapstructure:"webhook_path"     validate:"required,startswith=/"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   validate:"min=1024"`
}

// DatabaseConfig points at the SQLite message store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// StorageConfig controls where rendered documents are written and the base
// URL they are published under.
type StorageConfig struct {
	Root          string `mapstructure:"root"            validate:"required"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
}

// SummaryConfig controls summary rendering.
type SummaryConfig struct {
	// TemplatePath overrides the embedded HTML template when set.
	TemplatePath string `mapstructure:"template_path"`
	// Timezone is an IANA zone name used for rendered timestamps. Empty means the process local zone.
	Timezone string `mapstructure:"timezone"`
	// MaxTextLength is the longest message (in UTF-16 code units) that is stored.
	MaxTextLength int `mapstructure:"max_text_length" validate:"min=1"`
}

// MessagesConfig holds every user-visible reply.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required,contains=%s"`
	Help           string `mapstructure:"help"            validate:"required"`
	NeedHashtag    string `mapstructure:"need_hashtag"    validate:"required"`
	NoMessages     string `mapstructure:"no_messages"     validate:"required,contains=%s"`
	SummaryReady   string `mapstructure:"summary_ready"   validate:"required,contains=%s"`
	UnknownCommand string `mapstructure:"unknown_command" validate:"required"`
}

// GeminiConfig enables the optional digest paragraph on summaries. An empty
// APIKey disables it.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	ModelName         string        `mapstructure:"model_name"         validate:"required_with=APIKey"`
	Temperature       float32       `mapstructure:"temperature"        validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	Timeout           time.Duration `mapstructure:"timeout"            validate:"min=1s"`
	MaxRetries        int           `mapstructure:"max_retries"        validate:"min=0,max=5"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"        validate:"min=0"`
	BreakerFailures   int           `mapstructure:"breaker_failures"   validate:"min=1"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"   validate:"min=1s"`
}

// SchedulerConfig lists scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  true,

	"telegram.token":          "",
	"telegram.webhook_secret": "",
	"telegram.bot_username":   "",

	"server.addr":             ":8080",
	"server.webhook_path":     "/webhook",
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,
	"server.max_body_bytes":   int64(1 << 20),

	"database.path": "storage.db",

	"storage.root":            "documents",
	"storage.public_base_url": "http://localhost:8080",

	"summary.template_path":   "",
	"summary.timezone":        "",
	"summary.max_text_length": 500,

	"messages.welcome":         "Welcome %s! I'm ScribrBot. Tag a message with a #hashtag and I will keep it. Send /summ #hashtag to get a page with every message tagged that way in this chat.",
	"messages.help":            "Tag messages with #hashtags and I will remember them. Send /summ #hashtag to get a summary page of every message with that hashtag.",
	"messages.need_hashtag":    "Found no messages with that hashtag because there was no hashtag: I need a hashtag to summarize, e.g. /summ #topic",
	"messages.no_messages":     "There are no messages with that hashtag (#%s) in this chat yet.",
	"messages.summary_ready":   "Here is your summary: %s",
	"messages.unknown_command": "Sorry, I cannot handle that command.",

	"gemini.api_key":            "",
	"gemini.model_name":         "gemini-2.0-flash",
	"gemini.temperature":        0.3,
	"gemini.system_instruction": "You summarize chat messages that share a hashtag. Answer with one short neutral paragraph in the language of the messages. Do not invent facts.",
	"gemini.timeout":            30 * time.Second,
	"gemini.max_retries":        1,
	"gemini.retry_delay":        2 * time.Second,
	"gemini.breaker_failures":   3,
	"gemini.breaker_cooldown":   5 * time.Minute,

	"scheduler.tasks": map[string]any{
		"sql_maintenance": map[string]any{
			"enabled":  true,
			"schedule": "0 0 4 * * *",
		},
	},
}

// LoadConfig reads path (a missing file is not an error), applies SCRIBR_*
// environment overrides on top of the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and values the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if c.Summary.Timezone != "" {
		if _, err := time.LoadLocation(c.Summary.Timezone); err != nil {
			return fmt.Errorf("%w: invalid summary.timezone %q: %v", ErrConfiguration, c.Summary.Timezone, err)
		}
	}
	return nil
}

// Location returns the zone summaries are rendered in.
func (c *Config) Location() *time.Location {
	if c.Summary.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Summary.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
