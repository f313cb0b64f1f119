// Package config loads the runtime configuration from config.env files and
// environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	AppName     = "auto-inspect-bot"
	EnvFileName = "config.env"
)

type Config struct {
	BotToken    string
	DatabaseURL string
	SQLitePath  string
	LogLevel    zerolog.Level
	// Render is set on hosts with an ephemeral disk, where DATABASE_URL is required.
	Render bool
	Port   string

	MaxImagesToAnalyze int
	ComparableLimit    int

	RequestTimeout time.Duration
	MaxRetries     int
	ParsingDelay   time.Duration

	RefreshInterval time.Duration
	StaleAfter      time.Duration
	RefreshBatch    int
	SeedURLs        []string
}

// ConfigFilePath returns the path of the config file in the user's config
// directory.
func ConfigFilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configBase, AppName, EnvFileName), nil
}

// LoadEnvFile loads .env from the working directory and then the config
// file in the user's config directory. Variables already set win. Errors are
// ignored since the files may not exist.
func LoadEnvFile() {
	_ = godotenv.Load(".env")
	if configPath, err := ConfigFilePath(); err == nil {
		_ = godotenv.Load(configPath)
	}
}

// Load reads the configuration from the environment, falling back to
// defaults for unset or malformed values.
func Load() Config {
	return Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  envString("SQLITE_PATH", "car_ads.db"),
		LogLevel:    envLevel("LOG_LEVEL", zerolog.InfoLevel),
		Render:      envBool("RENDER", false),
		Port:        envString("PORT", "8080"),

		MaxImagesToAnalyze: envInt("MAX_IMAGES_TO_ANALYZE", 5),
		ComparableLimit:    envInt("COMPARABLE_LIMIT", 3),

		RequestTimeout: envDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:     envInt("MAX_RETRIES", 3),
		ParsingDelay:   envDuration("PARSING_DELAY", time.Second),

		RefreshInterval: envDuration("REFRESH_INTERVAL", time.Hour),
		StaleAfter:      envDuration("STALE_AFTER", 24*time.Hour),
		RefreshBatch:    envInt("REFRESH_BATCH", 20),
		SeedURLs:        envList("SEED_URLS"),
	}
}

// MissingRequired returns the names of required variables that are not set.
func (c Config) MissingRequired() []string {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.Render && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	return missing
}

// Validate reports missing or inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	for _, name := range c.MissingRequired() {
		errs = append(errs, errors.New(name+" is required"))
	}
	if c.MaxImagesToAnalyze <= 0 {
		errs = append(errs, errors.New("MAX_IMAGES_TO_ANALYZE must be positive"))
	}
	if c.ComparableLimit < 0 {
		errs = append(errs, errors.New("COMPARABLE_LIMIT must not be negative"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid integer, using default")
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("invalid boolean, using default")
		return def
	}
	return b
}

// envDuration accepts Go durations ("1m30s") and plain numbers of seconds ("1.5").
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("invalid duration, using default")
	return def
}

func envLevel(key string, def zerolog.Level) zerolog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	v = strings.ToLower(v)
	if v == "warning" {
		v = "warn"
	}
	level, err := zerolog.ParseLevel(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid log level, using default")
		return def
	}
	return level
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(os.Getenv(key), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
