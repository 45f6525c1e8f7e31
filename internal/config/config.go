package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/flux-agi/flagsync_go/flagsync"
	"github.com/flux-agi/flagsync_go/flagsyncmq"
	"github.com/flux-agi/flagsync_go/unleash"
)

const (
	EnvConfigPath = "FLAGSYNC_CONFIG"
	EnvUnleashURL = "FLAGSYNC_UNLEASH_URL"
	EnvClientKey  = "FLAGSYNC_CLIENT_KEY"
	EnvNatsURL    = "FLAGSYNC_NATS_URL"

	defaultConfigPath = "~/.config/flagsync/config.toml"
	defaultAppName    = "flagsync"
)

// Config is the resolved command configuration.
type Config struct {
	// Path is the file the configuration was read from. It is empty when
	// defaults were used.
	Path string

	URL             string
	ClientKey       string
	AppName         string
	Environment     string
	RefreshInterval time.Duration
	DisableRefresh  bool
	Headers         map[string]string

	Context flagsync.EvaluationContext

	NatsURL  string
	NatsName string

	LogLevel slog.Level
}

type fileConfig struct {
	Unleash struct {
		URL             string            `toml:"url" yaml:"url" json:"url"`
		ClientKey       string            `toml:"client_key" yaml:"client_key" json:"client_key"`
		AppName         string            `toml:"app_name" yaml:"app_name" json:"app_name"`
		Environment     string            `toml:"environment" yaml:"environment" json:"environment"`
		RefreshInterval string            `toml:"refresh_interval" yaml:"refresh_interval" json:"refresh_interval"`
		DisableRefresh  bool              `toml:"disable_refresh" yaml:"disable_refresh" json:"disable_refresh"`
		Headers         map[string]string `toml:"headers" yaml:"headers" json:"headers"`
	} `toml:"unleash" yaml:"unleash" json:"unleash"`

	Context struct {
		UserID        string            `toml:"user_id" yaml:"user_id" json:"user_id"`
		SessionID     string            `toml:"session_id" yaml:"session_id" json:"session_id"`
		RemoteAddress string            `toml:"remote_address" yaml:"remote_address" json:"remote_address"`
		Properties    map[string]string `toml:"properties" yaml:"properties" json:"properties"`
	} `toml:"context" yaml:"context" json:"context"`

	NATS struct {
		URL  string `toml:"url" yaml:"url" json:"url"`
		Name string `toml:"name" yaml:"name" json:"name"`
	} `toml:"nats" yaml:"nats" json:"nats"`

	Log struct {
		Level string `toml:"level" yaml:"level" json:"level"`
	} `toml:"log" yaml:"log" json:"log"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		AppName:         defaultAppName,
		RefreshInterval: unleash.DefaultRefreshInterval,
		NatsURL:         flagsyncmq.DefaultNatsURL,
		NatsName:        defaultAppName,
		LogLevel:        slog.LevelInfo,
	}
}

// Load reads the config at path, or at $FLAGSYNC_CONFIG, or at the default
// location. A missing default file yields defaults; a missing explicit file
// is an error. Environment overrides apply in every case.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}

	resolved, err := expandPath(defaultConfigPath)
	if explicit != "" {
		resolved, err = expandPath(explicit)
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		cfg, err = parse(resolved, data)
		if err != nil {
			return Config{}, err
		}

		cfg.Path = resolved
	case errors.Is(err, os.ErrNotExist) && explicit == "":
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	applyEnv(&cfg)

	return cfg, nil
}

func parse(path string, data []byte) (Config, error) {
	var raw fileConfig

	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &raw)
	default:
		err = toml.Unmarshal(data, &raw)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()

	if v := strings.TrimSpace(raw.Unleash.URL); v != "" {
		cfg.URL = v
	}

	cfg.ClientKey = strings.TrimSpace(raw.Unleash.ClientKey)

	if v := strings.TrimSpace(raw.Unleash.AppName); v != "" {
		cfg.AppName = v
		cfg.NatsName = v
	}

	cfg.Environment = strings.TrimSpace(raw.Unleash.Environment)
	cfg.DisableRefresh = raw.Unleash.DisableRefresh
	cfg.Headers = raw.Unleash.Headers

	if v := strings.TrimSpace(raw.Unleash.RefreshInterval); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse refresh_interval %q: %w", v, err)
		}

		if interval <= 0 {
			return Config{}, fmt.Errorf("refresh_interval must be positive, got %s", interval)
		}

		cfg.RefreshInterval = interval
	}

	cfg.Context = flagsync.EvaluationContext{
		UserID:        strings.TrimSpace(raw.Context.UserID),
		SessionID:     strings.TrimSpace(raw.Context.SessionID),
		RemoteAddress: strings.TrimSpace(raw.Context.RemoteAddress),
		Properties:    raw.Context.Properties,
	}

	if v := strings.TrimSpace(raw.NATS.URL); v != "" {
		cfg.NatsURL = v
	}

	if v := strings.TrimSpace(raw.NATS.Name); v != "" {
		cfg.NatsName = v
	}

	if v := strings.TrimSpace(raw.Log.Level); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("parse log level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvUnleashURL)); v != "" {
		cfg.URL = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvClientKey)); v != "" {
		cfg.ClientKey = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvNatsURL)); v != "" {
		cfg.NatsURL = v
	}
}

// ClientConfig returns the unleash client settings.
func (c Config) ClientConfig() unleash.Config {
	return unleash.Config{
		URL:             c.URL,
		ClientKey:       c.ClientKey,
		AppName:         c.AppName,
		Environment:     c.Environment,
		RefreshInterval: c.RefreshInterval,
		DisableRefresh:  c.DisableRefresh,
		Context:         c.Context.Clone(),
		Headers:         c.Headers,
	}
}

// EvaluationContext returns the configured initial context.
func (c Config) EvaluationContext() flagsync.EvaluationContext {
	return c.Context.Clone()
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}

	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}

		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}

	return filepath.Abs(trimmed)
}
