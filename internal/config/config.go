// Package config loads the secredit CLI configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ai8future/secredit"
)

// Environment variables that override file settings.
const (
	EnvBaseURL = "SECREDIT_BASE_URL"
	EnvStore   = "SECREDIT_STORE"
	EnvMaster  = "SECREDIT_MASTER"
)

// DefaultBaseURL is the page share links are built on.
const DefaultBaseURL = "https://flashmood69.github.io/SecrEdit/"

const (
	appDir         = "secredit"
	configFileName = "config.yaml"
	storeFileName  = "store.json"
	configFileMode = 0o600
	configDirMode  = 0o700
)

// Duration is a time.Duration written as a Go duration string ("500ms", "10s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	BaseURL              string   `yaml:"base_url"`
	StorePath            string   `yaml:"store_path"`
	WorkerTimeout        Duration `yaml:"worker_timeout"`
	Debounce             Duration `yaml:"debounce"`
	MaxDecompressedBytes int      `yaml:"max_decompressed_bytes"`

	// MasterPassword comes only from the environment.
	MasterPassword string `yaml:"-"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:              DefaultBaseURL,
		StorePath:            defaultStorePath(),
		WorkerTimeout:        Duration(secredit.DefaultWorkerTimeout),
		Debounce:             Duration(secredit.DefaultDebounce),
		MaxDecompressedBytes: secredit.MaxDecompressedSize,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/secredit/config.yaml or the platform
// equivalent.
func DefaultPath() string {
	return filepath.Join(configDir(), configFileName)
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Path = path
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the file settings to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, configFileMode); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks value ranges and the base URL.
func (c *Config) Validate() error {
	if c.WorkerTimeout < 0 {
		return fmt.Errorf("worker_timeout must not be negative")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if c.MaxDecompressedBytes < 0 {
		return fmt.Errorf("max_decompressed_bytes must not be negative")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: scheme and host are required", c.BaseURL)
	}
	return nil
}

// EngineOptions returns the engine options the configuration implies.
func (c *Config) EngineOptions() []secredit.Option {
	var opts []secredit.Option
	if c.MaxDecompressedBytes > 0 {
		opts = append(opts, secredit.WithMaxDecompressedSize(c.MaxDecompressedBytes))
	}
	return opts
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvStore); ok && v != "" {
		c.StorePath = v
	}
	if v, ok := os.LookupEnv(EnvMaster); ok {
		c.MasterPassword = v
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, appDir)
}

func defaultStorePath() string {
	return filepath.Join(configDir(), storeFileName)
}
