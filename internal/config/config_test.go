package config

import (
	"os"
	"path/filepath"
	"testing"
)

// setConfigHome points XDG_CONFIG_HOME at dir for the test's duration.
func setConfigHome(t *testing.T, dir string) {
	t.Helper()
	orig := os.Getenv("XDG_CONFIG_HOME")
	t.Cleanup(func() {
		if orig == "" {
			os.Unsetenv("XDG_CONFIG_HOME")
		} else {
			os.Setenv("XDG_CONFIG_HOME", orig)
		}
	})
	os.Setenv("XDG_CONFIG_HOME", dir)
}

func writeConfigFile(t *testing.T, configHome, content string) {
	t.Helper()
	dir := filepath.Join(configHome, "aidev")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != "http://localhost:11434" {
		t.Errorf("Default apiUrl = %q, want %q", cfg.APIURL, "http://localhost:11434")
	}
	if cfg.DefaultModel != "qwen2.5-coder:14b" {
		t.Errorf("Default model = %q, want %q", cfg.DefaultModel, "qwen2.5-coder:14b")
	}
	if cfg.TimeoutSeconds != 120 {
		t.Errorf("Default timeoutSeconds = %d, want 120", cfg.TimeoutSeconds)
	}
	if !cfg.Cache.Enabled {
		t.Error("Default cache.enabled should be true")
	}
	if cfg.Cache.MaxSizeMB != 100 {
		t.Errorf("Default cache.maxSizeMb = %d, want 100", cfg.Cache.MaxSizeMB)
	}
	if cfg.Cache.MaxMemoryItems != 100 {
		t.Errorf("Default cache.maxMemoryItems = %d, want 100", cfg.Cache.MaxMemoryItems)
	}
	if cfg.Cache.CleanupIntervalSeconds != 3600 {
		t.Errorf("Default cache.cleanupIntervalSeconds = %d, want 3600", cfg.Cache.CleanupIntervalSeconds)
	}
	if cfg.History.MaxEntries != 100 {
		t.Errorf("Default history.maxEntries = %d, want 100", cfg.History.MaxEntries)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
}

func TestTemperature(t *testing.T) {
	cfg := Default()
	if got := cfg.Temperature("unknown-model"); got != DefaultTemperature {
		t.Errorf("Temperature = %v, want default %v", got, DefaultTemperature)
	}

	cfg.Models = map[string]ModelConfig{
		"qwen2.5-coder:14b": {Temperature: 0.2},
	}
	if got := cfg.Temperature("qwen2.5-coder:14b"); got != 0.2 {
		t.Errorf("Temperature = %v, want per-model 0.2", got)
	}
}

func TestTimeout(t *testing.T) {
	cfg := Default()
	cfg.Models = map[string]ModelConfig{
		"slow-model": {TimeoutSeconds: 600},
	}
	if got := cfg.Timeout("slow-model"); got != 600 {
		t.Errorf("Timeout = %d, want per-model 600", got)
	}
	if got := cfg.Timeout("other"); got != 120 {
		t.Errorf("Timeout = %d, want global 120", got)
	}
}

func TestMergeEnv(t *testing.T) {
	orig := map[string]string{}
	envKeys := []string{"AIDEV_API_URL", "AIDEV_MODEL", "AIDEV_API_KEY", "AIDEV_TIMEOUT", "AIDEV_CACHE_DIR", "AIDEV_CACHE_MAX_SIZE_MB"}
	for _, k := range envKeys {
		orig[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range orig {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	os.Setenv("AIDEV_API_URL", "http://ollama.internal:11434")
	os.Setenv("AIDEV_MODEL", "llama3.2")
	os.Setenv("AIDEV_API_KEY", "test-key")
	os.Setenv("AIDEV_TIMEOUT", "60")
	os.Setenv("AIDEV_CACHE_DIR", "/tmp/aidev-cache")
	os.Setenv("AIDEV_CACHE_MAX_SIZE_MB", "50")

	cfg := Default()
	mergeEnv(&cfg)

	if cfg.APIURL != "http://ollama.internal:11434" {
		t.Errorf("APIURL = %q, want env value", cfg.APIURL)
	}
	if cfg.DefaultModel != "llama3.2" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "llama3.2")
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-key")
	}
	if cfg.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want 60", cfg.TimeoutSeconds)
	}
	if cfg.Cache.Dir != "/tmp/aidev-cache" {
		t.Errorf("Cache.Dir = %q, want %q", cfg.Cache.Dir, "/tmp/aidev-cache")
	}
	if cfg.Cache.MaxSizeMB != 50 {
		t.Errorf("Cache.MaxSizeMB = %d, want 50", cfg.Cache.MaxSizeMB)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	overrides := map[string]string{
		"model":          "deepseek-coder:6.7b",
		"apiUrl":         "http://other:11434",
		"timeoutSeconds": "30",
		"noCache":        "true",
	}
	mergeOverrides(&cfg, overrides)

	if cfg.DefaultModel != "deepseek-coder:6.7b" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "deepseek-coder:6.7b")
	}
	if cfg.APIURL != "http://other:11434" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "http://other:11434")
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.TimeoutSeconds)
	}
	if cfg.Cache.Enabled {
		t.Error("noCache override should disable the cache")
	}
}

func TestMergeOverrides_Nil(t *testing.T) {
	cfg := Default()
	mergeOverrides(&cfg, nil)
	if cfg.DefaultModel != "qwen2.5-coder:14b" {
		t.Errorf("DefaultModel changed with nil overrides")
	}
}

func TestSetField(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
	}{
		{"apiUrl", "http://other:11434"},
		{"defaultModel", "llama3.2"},
		{"timeoutSeconds", "90"},
		{"cache.enabled", "false"},
		{"cache.dir", "/tmp/c"},
		{"cache.maxSizeMb", "200"},
		{"cache.maxMemoryItems", "50"},
		{"cache.evictionPolicy", "lru"},
		{"cache.cleanupIntervalSeconds", "600"},
		{"history.maxEntries", "500"},
	}

	for _, tt := range tests {
		if err := SetField(&cfg, tt.key, tt.value); err != nil {
			t.Errorf("SetField(%q, %q) error: %v", tt.key, tt.value, err)
		}
	}

	if cfg.DefaultModel != "llama3.2" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "llama3.2")
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Cache.MaxSizeMB != 200 {
		t.Errorf("Cache.MaxSizeMB = %d, want 200", cfg.Cache.MaxSizeMB)
	}
	if cfg.Cache.EvictionPolicy != "lru" {
		t.Errorf("Cache.EvictionPolicy = %q, want %q", cfg.Cache.EvictionPolicy, "lru")
	}
	if cfg.History.MaxEntries != 500 {
		t.Errorf("History.MaxEntries = %d, want 500", cfg.History.MaxEntries)
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "value"); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestSetField_InvalidInt(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "cache.maxSizeMb", "notanumber"); err == nil {
		t.Error("Expected error for non-integer value")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"lru policy", func(c *Config) { c.Cache.EvictionPolicy = "lru" }, false},
		{"lfu policy", func(c *Config) { c.Cache.EvictionPolicy = "lfu" }, false},
		{"unknown policy", func(c *Config) { c.Cache.EvictionPolicy = "mru" }, true},
		{"bad api url", func(c *Config) { c.APIURL = "localhost:11434" }, true},
		{"zero timeout", func(c *Config) { c.TimeoutSeconds = 0 }, true},
		{"negative cache size", func(c *Config) { c.Cache.MaxSizeMB = -1 }, true},
		{"negative history entries", func(c *Config) { c.History.MaxEntries = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	// Test that overrides > env > defaults
	orig := os.Getenv("AIDEV_MODEL")
	defer func() {
		if orig == "" {
			os.Unsetenv("AIDEV_MODEL")
		} else {
			os.Setenv("AIDEV_MODEL", orig)
		}
	}()

	os.Setenv("AIDEV_MODEL", "llama3.2")

	cfg := Default()
	mergeEnv(&cfg)
	if cfg.DefaultModel != "llama3.2" {
		t.Errorf("After env merge, DefaultModel = %q, want %q", cfg.DefaultModel, "llama3.2")
	}

	mergeOverrides(&cfg, map[string]string{"model": "codellama:13b"})
	if cfg.DefaultModel != "codellama:13b" {
		t.Errorf("After override, DefaultModel = %q, want %q", cfg.DefaultModel, "codellama:13b")
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	setConfigHome(t, tmpDir)
	writeConfigFile(t, tmpDir, `{"defaultModel": "llama3.2"}`)

	cfg := Default()
	if err := LoadFile(&cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.DefaultModel != "llama3.2" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "llama3.2")
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should keep its default when the file omits it")
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Privacy.RedactSecrets should keep its default when the file omits it")
	}
	if cfg.Cache.MaxSizeMB != 100 {
		t.Errorf("Cache.MaxSizeMB = %d, want default 100", cfg.Cache.MaxSizeMB)
	}
}

func TestLoadFile_ExplicitFalseSticks(t *testing.T) {
	tmpDir := t.TempDir()
	setConfigHome(t, tmpDir)
	writeConfigFile(t, tmpDir, `{"cache": {"enabled": false}, "privacy": {"redactSecrets": false}}`)

	cfg := Default()
	if err := LoadFile(&cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false when the file explicitly disables it")
	}
	if cfg.Privacy.RedactSecrets {
		t.Error("Privacy.RedactSecrets should be false when the file explicitly disables it")
	}
}

func TestLoadFile_AllFields(t *testing.T) {
	tmpDir := t.TempDir()
	setConfigHome(t, tmpDir)
	writeConfigFile(t, tmpDir, `{
		"apiUrl": "http://other:11434",
		"defaultModel": "llama3.2",
		"timeoutSeconds": 45,
		"apiKey": "secret",
		"models": {"llama3.2": {"temperature": 0.3}},
		"cache": {
			"dir": "/tmp/cache",
			"maxSizeMb": 250,
			"maxMemoryItems": 20,
			"evictionPolicy": "lfu",
			"cleanupIntervalSeconds": 900
		},
		"history": {"path": "/tmp/history.db", "maxEntries": 42},
		"privacy": {"redactPaths": ["**/.secret"]}
	}`)

	cfg := Default()
	if err := LoadFile(&cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if cfg.APIURL != "http://other:11434" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "http://other:11434")
	}
	if cfg.TimeoutSeconds != 45 {
		t.Errorf("TimeoutSeconds = %d, want 45", cfg.TimeoutSeconds)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "secret")
	}
	if cfg.Models["llama3.2"].Temperature != 0.3 {
		t.Errorf("Models[llama3.2].Temperature = %v, want 0.3", cfg.Models["llama3.2"].Temperature)
	}
	if cfg.Cache.Dir != "/tmp/cache" {
		t.Errorf("Cache.Dir = %q, want %q", cfg.Cache.Dir, "/tmp/cache")
	}
	if cfg.Cache.MaxSizeMB != 250 {
		t.Errorf("Cache.MaxSizeMB = %d, want 250", cfg.Cache.MaxSizeMB)
	}
	if cfg.Cache.EvictionPolicy != "lfu" {
		t.Errorf("Cache.EvictionPolicy = %q, want %q", cfg.Cache.EvictionPolicy, "lfu")
	}
	if cfg.Cache.CleanupIntervalSeconds != 900 {
		t.Errorf("Cache.CleanupIntervalSeconds = %d, want 900", cfg.Cache.CleanupIntervalSeconds)
	}
	if cfg.History.Path != "/tmp/history.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/tmp/history.db")
	}
	if cfg.History.MaxEntries != 42 {
		t.Errorf("History.MaxEntries = %d, want 42", cfg.History.MaxEntries)
	}
	if len(cfg.Privacy.RedactPaths) != 1 || cfg.Privacy.RedactPaths[0] != "**/.secret" {
		t.Errorf("Privacy.RedactPaths = %v, want [**/.secret]", cfg.Privacy.RedactPaths)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	tmpDir := t.TempDir()
	setConfigHome(t, tmpDir)
	writeConfigFile(t, tmpDir, `{not json`)

	cfg := Default()
	if err := LoadFile(&cfg); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	orig := os.Getenv("XDG_CONFIG_HOME")
	defer func() {
		if orig == "" {
			os.Unsetenv("XDG_CONFIG_HOME")
		} else {
			os.Setenv("XDG_CONFIG_HOME", orig)
		}
	}()

	os.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/xdg-test/aidev" {
		t.Errorf("ConfigDir = %q, want %q", dir, "/tmp/xdg-test/aidev")
	}
}

func TestConfigPath(t *testing.T) {
	orig := os.Getenv("XDG_CONFIG_HOME")
	defer func() {
		if orig == "" {
			os.Unsetenv("XDG_CONFIG_HOME")
		} else {
			os.Setenv("XDG_CONFIG_HOME", orig)
		}
	}()

	os.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath error: %v", err)
	}
	if path != "/tmp/xdg-test/aidev/config.json" {
		t.Errorf("ConfigPath = %q, want %q", path, "/tmp/xdg-test/aidev/config.json")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	setConfigHome(t, t.TempDir())

	cfg := Default()
	cfg.DefaultModel = "llama3.2"
	cfg.Cache.MaxSizeMB = 250

	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded := Default()
	if err := LoadFile(&loaded); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.DefaultModel != "llama3.2" {
		t.Errorf("DefaultModel = %q, want %q", loaded.DefaultModel, "llama3.2")
	}
	if loaded.Cache.MaxSizeMB != 250 {
		t.Errorf("Cache.MaxSizeMB = %d, want 250", loaded.Cache.MaxSizeMB)
	}
}

func TestLoadFile_NoFile(t *testing.T) {
	setConfigHome(t, t.TempDir())

	cfg := Default()
	if err := LoadFile(&cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.DefaultModel != Default().DefaultModel {
		t.Errorf("Missing file should leave cfg untouched, got model %q", cfg.DefaultModel)
	}
}

func TestLoad_Integration(t *testing.T) {
	tmpDir := t.TempDir()

	orig := os.Getenv("XDG_CONFIG_HOME")
	defer func() {
		if orig == "" {
			os.Unsetenv("XDG_CONFIG_HOME")
		} else {
			os.Setenv("XDG_CONFIG_HOME", orig)
		}
	}()
	os.Setenv("XDG_CONFIG_HOME", tmpDir)

	// No config file: should get defaults + overrides
	cfg, err := Load(map[string]string{"model": "llama3.2"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DefaultModel != "llama3.2" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "llama3.2")
	}
	// Defaults should be preserved for unset fields
	if cfg.Cache.MaxSizeMB != 100 {
		t.Errorf("Cache.MaxSizeMB = %d, want 100 (default)", cfg.Cache.MaxSizeMB)
	}
}
