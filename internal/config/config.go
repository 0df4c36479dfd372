package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all claridoc configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Document and chat storage
	Store StoreConfig `yaml:"store"`

	// Editing session behaviour
	Editor EditorConfig `yaml:"editor"`

	// Model call retries
	Retry RetryConfig `yaml:"retry"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini client.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	Driver       string `yaml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
	OwnerID      string `yaml:"owner_id"`

	// MirrorDir, when set, mirrors every document to <dir>/<id>.txt and
	// imports edits made to those files.
	MirrorDir string `yaml:"mirror_dir"`
}

// EditorConfig configures editing sessions.
type EditorConfig struct {
	AutosaveDebounce string `yaml:"autosave_debounce"`
	HistoryLimit     int    `yaml:"history_limit"`
}

// RetryConfig configures rate-limit retries.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BackoffUnit string `yaml:"backoff_unit"` // wait before retry n is unit * 2^n
}

// ValidDrivers lists the supported database/sql driver names.
var ValidDrivers = []string{"sqlite", "sqlite3"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "120s",
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(DirName, "claridoc.db"),
			Driver:       "sqlite",
			OwnerID:      "local",
		},

		Editor: EditorConfig{
			AutosaveDebounce: "2s",
			HistoryLimit:     50,
		},

		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffUnit: "1s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults (plus environment) if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("CLARIDOC_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("CLARIDOC_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if owner := os.Getenv("CLARIDOC_OWNER"); owner != "" {
		c.Store.OwnerID = owner
	}
}

// ResolvePath makes a relative path absolute against workspace.
func ResolvePath(workspace, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetAutosaveDebounce returns the autosave window as a duration.
func (c *Config) GetAutosaveDebounce() time.Duration {
	d, err := time.ParseDuration(c.Editor.AutosaveDebounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetBackoffUnit returns the retry backoff unit as a duration.
func (c *Config) GetBackoffUnit() time.Duration {
	d, err := time.ParseDuration(c.Retry.BackoffUnit)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// Validate validates the configuration. The API key is checked separately by
// commands that call the model.
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}

	validDriver := false
	for _, d := range ValidDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Editor.HistoryLimit < 1 {
		return fmt.Errorf("editor.history_limit must be at least 1, got %d", c.Editor.HistoryLimit)
	}
	for name, v := range map[string]string{
		"llm.timeout":              c.LLM.Timeout,
		"editor.autosave_debounce": c.Editor.AutosaveDebounce,
		"retry.backoff_unit":       c.Retry.BackoffUnit,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}

	return nil
}
