// Package config loads server configuration from a YAML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/chartflow/claims"
)

// Storage backends.
const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Addr        string `yaml:"addr" validate:"required"`
	Session     string `yaml:"session" validate:"required"`
	Storage     string `yaml:"storage" validate:"oneof=badger postgres memory"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=Storage postgres"`
	BadgerPath  string `yaml:"badger_path" validate:"required_if=Storage badger"`

	Log      LogConfig      `yaml:"log"`
	Claims   ClaimsConfig   `yaml:"claims"`
	Sessions SessionsConfig `yaml:"sessions"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type ClaimsConfig struct {
	DefaultText  string        `yaml:"default_text" validate:"required"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
}

// SessionsConfig bounds how long an untouched questionnaire session is kept.
type SessionsConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:       ":3000",
		Session:    "default",
		Storage:    StorageBadger,
		BadgerPath: "./data",
		Log:        LogConfig{Level: "info", Format: "text"},
		Claims: ClaimsConfig{
			DefaultText:  claims.DefaultText,
			FetchTimeout: 3 * time.Second,
		},
		Sessions: SessionsConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// Load builds the configuration. path is an optional YAML file; envFiles
// default to ".env" and may be missing.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for key, dst := range map[string]*string{
		"CHARTFLOW_ADDR":        &cfg.Addr,
		"CHARTFLOW_SESSION":     &cfg.Session,
		"CHARTFLOW_STORAGE":     &cfg.Storage,
		"DATABASE_URL":          &cfg.DatabaseURL,
		"CHARTFLOW_BADGER_PATH": &cfg.BadgerPath,
		"CHARTFLOW_LOG_LEVEL":   &cfg.Log.Level,
		"CHARTFLOW_LOG_FORMAT":  &cfg.Log.Format,
	} {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
