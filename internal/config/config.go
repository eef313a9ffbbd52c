package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// DefaultTemperature is used when neither the model entry nor the caller
// specifies one.
const DefaultTemperature = 0.7

// Config represents the aidev configuration.
type Config struct {
	APIURL         string                 `json:"apiUrl"`
	DefaultModel   string                 `json:"defaultModel"`
	TimeoutSeconds int                    `json:"timeoutSeconds"`
	APIKey         string                 `json:"apiKey,omitempty"`
	Models         map[string]ModelConfig `json:"models,omitempty"`
	Cache          CacheConfig            `json:"cache"`
	History        HistoryConfig          `json:"history"`
	Privacy        PrivacyConfig          `json:"privacy"`
}

// ModelConfig holds per-model overrides keyed by model name.
type ModelConfig struct {
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeoutSeconds,omitempty"`
}

// CacheConfig controls response caching behavior.
type CacheConfig struct {
	Enabled                bool   `json:"enabled"`
	Dir                    string `json:"dir,omitempty"`
	MaxSizeMB              int    `json:"maxSizeMb"`
	MaxMemoryItems         int    `json:"maxMemoryItems"`
	EvictionPolicy         string `json:"evictionPolicy,omitempty"`
	CleanupIntervalSeconds int    `json:"cleanupIntervalSeconds"`
}

// HistoryConfig controls conversation history persistence.
type HistoryConfig struct {
	Path       string `json:"path,omitempty"`
	MaxEntries int    `json:"maxEntries"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		APIURL:         "http://localhost:11434",
		DefaultModel:   "qwen2.5-coder:14b",
		TimeoutSeconds: 120,
		Cache: CacheConfig{
			Enabled:                true,
			MaxSizeMB:              100,
			MaxMemoryItems:         100,
			CleanupIntervalSeconds: 3600,
		},
		History: HistoryConfig{
			MaxEntries: 100,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// Temperature returns the effective temperature for model.
func (c Config) Temperature(model string) float64 {
	if mc, ok := c.Models[model]; ok && mc.Temperature > 0 {
		return mc.Temperature
	}
	return DefaultTemperature
}

// Timeout returns the effective timeout in seconds for model.
func (c Config) Timeout(model string) int {
	if mc, ok := c.Models[model]; ok && mc.TimeoutSeconds > 0 {
		return mc.TimeoutSeconds
	}
	return c.TimeoutSeconds
}

// ConfigDir returns the platform-appropriate config directory for aidev.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "aidev"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "aidev"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "aidev"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "aidev"), nil
	default:
		return filepath.Join(home, ".config", "aidev"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile applies the config file on top of cfg. Fields absent from the
// file keep their current values, so an explicit false in the file sticks
// while omitted booleans keep their defaults. A missing file is not an error.
func LoadFile(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	if err := LoadFile(&cfg); err != nil {
		return Config{}, err
	}
	mergeEnv(&cfg)
	mergeOverrides(&cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component downstream would accept.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("apiUrl must be an http(s) URL, got %q", c.APIURL)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeoutSeconds must be positive, got %d", c.TimeoutSeconds)
	}
	switch c.Cache.EvictionPolicy {
	case "", "lru", "lfu":
	default:
		return fmt.Errorf("unknown eviction policy: %s", c.Cache.EvictionPolicy)
	}
	if c.Cache.MaxSizeMB < 0 {
		return fmt.Errorf("cache.maxSizeMb must be positive, got %d", c.Cache.MaxSizeMB)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.maxEntries must be positive, got %d", c.History.MaxEntries)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("AIDEV_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("AIDEV_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("AIDEV_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("AIDEV_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("AIDEV_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("AIDEV_CACHE_MAX_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxSizeMB = n
		}
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["apiUrl"]; ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := overrides["model"]; ok && v != "" {
		cfg.DefaultModel = v
	}
	if v, ok := overrides["timeoutSeconds"]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
		}
	}
	if v, ok := overrides["cacheDir"]; ok && v != "" {
		cfg.Cache.Dir = v
	}
	if v, ok := overrides["noCache"]; ok && v == "true" {
		cfg.Cache.Enabled = false
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "apiUrl":
		cfg.APIURL = value
	case "defaultModel":
		cfg.DefaultModel = value
	case "apiKey":
		cfg.APIKey = value
	case "timeoutSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("timeoutSeconds must be an integer: %w", err)
		}
		cfg.TimeoutSeconds = n
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache.enabled must be a boolean: %w", err)
		}
		cfg.Cache.Enabled = b
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.maxSizeMb":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.maxSizeMb must be an integer: %w", err)
		}
		cfg.Cache.MaxSizeMB = n
	case "cache.maxMemoryItems":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.maxMemoryItems must be an integer: %w", err)
		}
		cfg.Cache.MaxMemoryItems = n
	case "cache.evictionPolicy":
		cfg.Cache.EvictionPolicy = value
	case "cache.cleanupIntervalSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.cleanupIntervalSeconds must be an integer: %w", err)
		}
		cfg.Cache.CleanupIntervalSeconds = n
	case "history.path":
		cfg.History.Path = value
	case "history.maxEntries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("history.maxEntries must be an integer: %w", err)
		}
		cfg.History.MaxEntries = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
