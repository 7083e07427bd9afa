// Package config loads service settings from defaults, an optional YAML file, a .env
// file and the environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "config.yaml"

type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SamplePeriod    time.Duration `yaml:"sample_period"`
	DefaultLocale   string        `yaml:"default_locale"`
	// Guilds are sampled from startup without waiting for a ready event.
	Guilds []string `yaml:"guilds"`

	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Platform PlatformConfig `yaml:"platform"`
}

// StoreConfig picks the backend. DSN is a file path for the sqlite drivers, a URL for
// pgx/postgres, a directory for badger (empty means in memory) and host:port for redis.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type PlatformConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		ShutdownTimeout: 25 * time.Second,
		SamplePeriod:    time.Hour,
		DefaultLocale:   "ru",
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "../db/metrics.db",
		},
		Log: LogConfig{
			Dir:     "../log",
			File:    "webService.log",
			Level:   "info",
			Console: true,
		},
		Platform: PlatformConfig{
			URL:     "http://localhost:8090",
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_FILE or
// config.yaml is used when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getEnvString("CONFIG_FILE", DefaultFile)
		explicit = os.Getenv("CONFIG_FILE") != ""
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getEnvString("LISTEN_ADDR", c.ListenAddr)
	c.DefaultLocale = getEnvString("DEFAULT_LOCALE", c.DefaultLocale)
	c.Store.Driver = getEnvString("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnvString("STORE_DSN", c.Store.DSN)
	c.Log.Dir = getEnvString("LOG_DIR", c.Log.Dir)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)
	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Platform.URL = getEnvString("PLATFORM_URL", c.Platform.URL)

	if v := os.Getenv("GUILD_IDS"); v != "" {
		c.Guilds = c.Guilds[:0]
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Guilds = append(c.Guilds, id)
			}
		}
	}

	var err error
	if c.Log.Console, err = getEnvBool("LOG_CONSOLE", c.Log.Console); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"SAMPLE_PERIOD":    &c.SamplePeriod,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"PLATFORM_TIMEOUT": &c.Platform.Timeout,
	} {
		if *dst, err = getEnvDuration(key, *dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Store.Driver == "" {
		return errors.New("store driver must be set")
	}
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("sample period must be positive, got %s", c.SamplePeriod)
	}
	if c.ListenAddr == "" {
		return errors.New("listen address must be set")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "1h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("%s: invalid duration %q", key, value)
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}
