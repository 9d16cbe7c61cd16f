package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env     string `mapstructure:"env"`
	Results ResultsConfig
	HTTP    HTTPConfig
	Display DisplayConfig
	Parties PartiesConfig
	Redis   RedisConfig
	Health  HealthConfig
	Log     LogConfig
}

// ResultsConfig holds the results feed and polling schedule.
type ResultsConfig struct {
	URL             string `mapstructure:"url"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec"`
	TickMs          int    `mapstructure:"tick_ms"`
}

// Tick returns the countdown tick period.
func (r ResultsConfig) Tick() time.Duration {
	return time.Duration(r.TickMs) * time.Millisecond
}

// HTTPConfig holds the board's web server settings.
type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// DisplayConfig controls how timestamps are shown.
type DisplayConfig struct {
	Timezone   string `mapstructure:"timezone"`
	TimeLayout string `mapstructure:"time_layout"`
}

// Location resolves Timezone.
func (d DisplayConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("display timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// PartiesConfig points at an optional party metadata file.
type PartiesConfig struct {
	File        string `mapstructure:"file"`
	DefaultLogo string `mapstructure:"default_logo"`
}

// RedisConfig holds Redis connection settings for the leader mirror. An
// empty Addr disables the mirror.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Enabled reports whether the mirror should run.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// HealthConfig holds freshness monitoring settings.
type HealthConfig struct {
	StaleAfterSec int `mapstructure:"stale_after_sec"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables prefixed with
// TABLERO_, after loading a .env file from the working directory if one
// exists.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TABLERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Results feed defaults
	v.SetDefault("results.url", "https://api-elecciones2024.elnuevodia.com/gobernacion")
	v.SetDefault("results.poll_interval_sec", 30)
	v.SetDefault("results.tick_ms", 1000)

	// HTTP defaults
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.static_dir", "./public")

	// Display defaults
	v.SetDefault("display.timezone", "America/Puerto_Rico")
	v.SetDefault("display.time_layout", "1/2/2006, 3:04:05 PM")

	// Party metadata defaults
	v.SetDefault("parties.file", "")
	v.SetDefault("parties.default_logo", "/default-logo.png")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "tablero")

	v.SetDefault("health.stale_after_sec", 90)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Results = ResultsConfig{
		URL:             v.GetString("results.url"),
		PollIntervalSec: v.GetInt("results.poll_interval_sec"),
		TickMs:          v.GetInt("results.tick_ms"),
	}

	cfg.HTTP = HTTPConfig{
		Addr:      v.GetString("http.addr"),
		StaticDir: v.GetString("http.static_dir"),
	}

	cfg.Display = DisplayConfig{
		Timezone:   v.GetString("display.timezone"),
		TimeLayout: v.GetString("display.time_layout"),
	}

	cfg.Parties = PartiesConfig{
		File:        v.GetString("parties.file"),
		DefaultLogo: v.GetString("parties.default_logo"),
	}

	cfg.Redis = RedisConfig{
		Addr:      v.GetString("redis.addr"),
		Password:  v.GetString("redis.password"),
		DB:        v.GetInt("redis.db"),
		KeyPrefix: v.GetString("redis.key_prefix"),
	}

	cfg.Health = HealthConfig{
		StaleAfterSec: v.GetInt("health.stale_after_sec"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Results.URL == "" {
		errs = append(errs, errors.New("results.url is required"))
	}
	if c.Results.PollIntervalSec < 1 {
		errs = append(errs, fmt.Errorf("results.poll_interval_sec must be >= 1, got %d", c.Results.PollIntervalSec))
	}
	if c.Results.TickMs < 1 {
		errs = append(errs, fmt.Errorf("results.tick_ms must be >= 1, got %d", c.Results.TickMs))
	}
	if c.Health.StaleAfterSec < 1 {
		errs = append(errs, fmt.Errorf("health.stale_after_sec must be >= 1, got %d", c.Health.StaleAfterSec))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
