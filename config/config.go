// ABOUTME: Layered configuration for scout: defaults, YAML file, then environment overrides.
// ABOUTME: Flags are applied last by the CLI; this package covers everything below them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389-research/scout/research"
	"gopkg.in/yaml.v3"
)

const appName = "scout"

// Config is the resolved runtime configuration.
type Config struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	Search            string `yaml:"search"`
	MaxIterations     int    `yaml:"max_iterations"`
	Loop              bool   `yaml:"loop"`
	Adaptive          bool   `yaml:"adaptive"`
	FailOnSearchError bool   `yaml:"fail_on_search_error"`
	Graph             string `yaml:"graph"`
	DataDir           string `yaml:"data_dir"`

	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`

	// Credentials come from the environment only.
	SerpAPIKey string `yaml:"-"`
	TavilyKey  string `yaml:"-"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Search:        "serpapi",
		MaxIterations: research.DefaultMaxIterations,
		Server:        ServerConfig{Addr: "127.0.0.1:2389"},
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves configuration from defaults, the YAML file, and the environment.
// path selects the file; when empty SCOUT_CONFIG and then the XDG default are tried.
// Only an explicitly named file is required to exist.
func Load(path string) (Config, error) {
	cfg := Default()
	required := path != ""
	if path == "" {
		path = os.Getenv("SCOUT_CONFIG")
		required = path != ""
	}
	if path == "" {
		dir, err := ConfigDir()
		if err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Decode(bytes.NewReader(data), cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Decode reads YAML into cfg, keeping existing values for absent keys.
// Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment settings onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SCOUT_PROVIDER", &cfg.Provider)
	str("SCOUT_MODEL", &cfg.Model)
	str("SCOUT_SEARCH", &cfg.Search)
	str("SCOUT_GRAPH", &cfg.Graph)
	str("SCOUT_DATA_DIR", &cfg.DataDir)
	str("SCOUT_ADDR", &cfg.Server.Addr)
	str("SCOUT_LOG_LEVEL", &cfg.Log.Level)
	str("SCOUT_LOG_FORMAT", &cfg.Log.Format)
	str("OPENAI_BASE_URL", &cfg.BaseURL)
	str("SERPAPI_API_KEY", &cfg.SerpAPIKey)
	str("TAVILY_API_KEY", &cfg.TavilyKey)

	if v, ok := lookup("SCOUT_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SCOUT_MAX_ITERATIONS: %w", err)
		}
		cfg.MaxIterations = n
	}
	return nil
}

// DataDir returns $XDG_DATA_HOME/scout, falling back to ~/.local/share/scout.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/scout, falling back to ~/.config/scout.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// DatabasePath returns the SQLite history path, creating its directory.
func (c Config) DatabasePath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		if dir, err = DataDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}
