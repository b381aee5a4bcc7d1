// Package config loads layerlint settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	lerrors "github.com/flamingcow/layerlint/internal/errors"
	"github.com/flamingcow/layerlint/internal/layers"
)

// Environment keys.
const (
	EnvPolicy    = "LAYERLINT_POLICY"
	EnvLogLevel  = "LAYERLINT_LOG_LEVEL"
	EnvWorkers   = "LAYERLINT_WORKERS"
	EnvCacheSize = "LAYERLINT_CACHE_SIZE"
)

// DefaultEnvFile is the settings file read from the working directory.
const DefaultEnvFile = ".env"

// Config holds the runtime settings.
type Config struct {
	// PolicyFile is a YAML policy path. Empty means the built-in policy.
	PolicyFile string `validate:"omitempty,max=4096"`
	LogLevel   string `validate:"oneof=debug info warn error"`
	// Workers bounds parallel extraction; 0 means one per CPU.
	Workers   int `validate:"min=0,max=1024"`
	CacheSize int `validate:"min=1,max=1048576"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	mu     sync.Mutex
	loaded = map[string]*Config{}
)

// Load returns the settings for envFile, reading it at most once per
// process for each absolute path. A missing file is not an error. Process environment variables
// take precedence over values from the file.
func Load(envFile string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	key := envFile
	if abs, err := filepath.Abs(envFile); err == nil && envFile != "" {
		key = abs
	}
	if cfg, ok := loaded[key]; ok {
		return cfg, nil
	}

	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case !errors.Is(err, fs.ErrNotExist):
			return nil, lerrors.Wrap(lerrors.EInvalidConfig, "failed to read "+envFile, err)
		}
	}

	cfg, err := FromMap(merge(fileVals))
	if err != nil {
		return nil, err
	}
	loaded[key] = cfg
	return cfg, nil
}

func merge(fileVals map[string]string) map[string]string {
	out := make(map[string]string, len(fileVals))
	for k, v := range fileVals {
		out[k] = v
	}
	for _, key := range []string{EnvPolicy, EnvLogLevel, EnvWorkers, EnvCacheSize} {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
		}
	}
	return out
}

// FromMap builds and validates a Config from raw key/value settings.
func FromMap(vals map[string]string) (*Config, error) {
	cfg := &Config{
		PolicyFile: strings.TrimSpace(vals[EnvPolicy]),
		LogLevel:   strings.ToLower(strings.TrimSpace(vals[EnvLogLevel])),
		CacheSize:  4096,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}

	var err error
	if cfg.Workers, err = intSetting(vals, EnvWorkers, 0); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = intSetting(vals, EnvCacheSize, cfg.CacheSize); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, lerrors.Wrap(lerrors.EInvalidConfig, "invalid configuration", err)
	}
	return cfg, nil
}

func intSetting(vals map[string]string, key string, def int) (int, error) {
	raw := strings.TrimSpace(vals[key])
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, lerrors.Wrap(lerrors.EInvalidConfig, key+" must be an integer", err)
	}
	return n, nil
}

// Policy returns the configured layer policy.
func (c *Config) Policy() (*layers.Policy, error) {
	if c.PolicyFile == "" {
		return layers.Default(), nil
	}
	p, err := layers.LoadFile(c.PolicyFile)
	if err != nil {
		return nil, lerrors.Wrap(lerrors.EInvalidPolicy, "failed to load policy "+c.PolicyFile, err)
	}
	return p, nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}
