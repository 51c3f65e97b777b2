// Package config loads and validates kbsync configuration. Precedence is
// hardcoded defaults, then the YAML config file, then KBSYNC_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete kbsync configuration, shared by the sync engine
// and the store service.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Roots   []string     `yaml:"roots" json:"roots"`
	Store   StoreConfig  `yaml:"store" json:"store"`
	Sync    SyncConfig   `yaml:"sync" json:"sync"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Server  ServerConfig `yaml:"server" json:"server"`
	Log     LogConfig    `yaml:"log" json:"log"`
}

// StoreConfig points the sync engine at the store service.
type StoreConfig struct {
	// URL is the store service base URL.
	URL string `yaml:"url" json:"url"`
	// AdminKey is sent on every store request. Empty disables auth.
	AdminKey string `yaml:"admin_key" json:"admin_key"`
	// Timeout caps every store call as a whole. Empty leaves only the
	// per-call timeouts in place.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// StatePath is where the local sync state file lives.
	StatePath string `yaml:"state_path" json:"state_path"`

	// AllowRootRemoval permits deleting every document under a root that
	// was removed from the config. Off by default; the root removal guard
	// vetoes the deletion pass otherwise.
	AllowRootRemoval bool `yaml:"allow_root_removal" json:"allow_root_removal"`

	// RequireMountCheck additionally demands each root is a mount point
	// during the pre-flight health check. Enable for network shares.
	RequireMountCheck bool `yaml:"require_mount_check" json:"require_mount_check"`

	// MaxFileSizeMB is the largest file the scanner will consider.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// Workers is the number of files ingested concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// ChunkMaxChars is the maximum chunk size in characters.
	ChunkMaxChars int `yaml:"chunk_max_chars" json:"chunk_max_chars"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	// Debounce is how long to wait after the last filesystem event before
	// triggering a sync run.
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures the store service (kbstore).
type ServerConfig struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	// DataDir holds the index and catalog on disk.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Collection names the chunk collection.
	Collection string `yaml:"collection" json:"collection"`
	// AdminKey protects mutating endpoints. Empty disables auth.
	AdminKey string `yaml:"admin_key" json:"admin_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Roots:   []string{},
		Store: StoreConfig{
			URL: "http://localhost:8000",
		},
		Sync: SyncConfig{
			StatePath:     defaultStatePath(),
			MaxFileSizeMB: 10,
			Workers:       runtime.NumCPU(),
			ChunkMaxChars: 1500,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Server: ServerConfig{
			ListenAddr: ":8000",
			DataDir:    defaultDataDir(),
			Collection: "kb_chunks",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".kbsync", "kb_state.json")
	}
	return filepath.Join(home, ".kbsync", "kb_state.json")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".kbsync", "store")
	}
	return filepath.Join(home, ".kbsync", "store")
}

// DefaultConfigPath returns the default config file location, following
// XDG when set.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbsync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kbsync", "config.yaml")
	}
	return filepath.Join(home, ".config", "kbsync", "config.yaml")
}

// Load reads configuration from path. An empty path falls back to
// ./kbsync.yaml, then the default config location; a missing file at the
// fallback locations is fine and yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = "kbsync.yaml"
		if !fileExists(path) {
			path = DefaultConfigPath()
		}
	}

	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Booleans merge
// directly; false is their default either way.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Roots) > 0 {
		c.Roots = other.Roots
	}

	if other.Store.URL != "" {
		c.Store.URL = other.Store.URL
	}
	if other.Store.AdminKey != "" {
		c.Store.AdminKey = other.Store.AdminKey
	}
	if other.Store.Timeout != "" {
		c.Store.Timeout = other.Store.Timeout
	}

	if other.Sync.StatePath != "" {
		c.Sync.StatePath = other.Sync.StatePath
	}
	c.Sync.AllowRootRemoval = c.Sync.AllowRootRemoval || other.Sync.AllowRootRemoval
	c.Sync.RequireMountCheck = c.Sync.RequireMountCheck || other.Sync.RequireMountCheck
	if other.Sync.MaxFileSizeMB != 0 {
		c.Sync.MaxFileSizeMB = other.Sync.MaxFileSizeMB
	}
	if other.Sync.Workers != 0 {
		c.Sync.Workers = other.Sync.Workers
	}
	if other.Sync.ChunkMaxChars != 0 {
		c.Sync.ChunkMaxChars = other.Sync.ChunkMaxChars
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Server.ListenAddr != "" {
		c.Server.ListenAddr = other.Server.ListenAddr
	}
	if other.Server.DataDir != "" {
		c.Server.DataDir = other.Server.DataDir
	}
	if other.Server.Collection != "" {
		c.Server.Collection = other.Server.Collection
	}
	if other.Server.AdminKey != "" {
		c.Server.AdminKey = other.Server.AdminKey
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// applyEnvOverrides applies KBSYNC_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KBSYNC_ROOTS"); v != "" {
		c.Roots = filepath.SplitList(v)
	}
	if v := os.Getenv("KBSYNC_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("KBSYNC_ADMIN_KEY"); v != "" {
		c.Store.AdminKey = v
		c.Server.AdminKey = v
	}
	if v := os.Getenv("KBSYNC_STORE_TIMEOUT"); v != "" {
		c.Store.Timeout = v
	}
	if v := os.Getenv("KBSYNC_STATE_PATH"); v != "" {
		c.Sync.StatePath = v
	}
	if v := os.Getenv("KBSYNC_ALLOW_ROOT_REMOVAL"); v != "" {
		c.Sync.AllowRootRemoval = isTruthy(v)
	}
	if v := os.Getenv("KBSYNC_REQUIRE_MOUNT_CHECK"); v != "" {
		c.Sync.RequireMountCheck = isTruthy(v)
	}
	if v := os.Getenv("KBSYNC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.Workers = n
		}
	}
	if v := os.Getenv("KBSYNC_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("KBSYNC_DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}
	if v := os.Getenv("KBSYNC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func isTruthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url must not be empty")
	}
	if !strings.HasPrefix(c.Store.URL, "http://") && !strings.HasPrefix(c.Store.URL, "https://") {
		return fmt.Errorf("store.url must be an http(s) URL, got %s", c.Store.URL)
	}
	if c.Sync.StatePath == "" {
		return fmt.Errorf("sync.state_path must not be empty")
	}
	if c.Sync.MaxFileSizeMB < 0 {
		return fmt.Errorf("sync.max_file_size_mb must be non-negative, got %d", c.Sync.MaxFileSizeMB)
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must be non-negative, got %d", c.Sync.Workers)
	}
	if c.Sync.ChunkMaxChars < 0 {
		return fmt.Errorf("sync.chunk_max_chars must be non-negative, got %d", c.Sync.ChunkMaxChars)
	}
	seen := map[string]string{}
	for _, root := range c.Roots {
		if root == "" {
			return fmt.Errorf("roots must not contain empty paths")
		}
		label := filepath.Base(strings.TrimRight(root, "/"))
		if prev, ok := seen[label]; ok {
			return fmt.Errorf("roots %s and %s share the label %q", prev, root, label)
		}
		seen[label] = root
	}
	if _, err := c.WatchDebounce(); err != nil {
		return fmt.Errorf("watch.debounce is not a duration: %w", err)
	}
	if _, err := c.StoreTimeout(); err != nil {
		return fmt.Errorf("store.timeout is not a duration: %w", err)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}
	return nil
}

// MaxFileSize returns the scanner size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Sync.MaxFileSizeMB) * 1024 * 1024
}

// StoreTimeout parses the outer store call timeout; zero means only the
// per-call timeouts apply.
func (c *Config) StoreTimeout() (time.Duration, error) {
	if c.Store.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Store.Timeout)
}

// WatchDebounce parses the watch debounce interval.
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 2 * time.Second, nil
	}
	return time.ParseDuration(c.Watch.Debounce)
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
