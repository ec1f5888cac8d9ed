// Package config provides configuration loading and structs for the ecolaudo server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Report  ReportConfig  `yaml:"report"`
	Cache   CacheConfig   `yaml:"cache"`
	Export  ExportConfig  `yaml:"export"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxUploadMB int64    `yaml:"max_upload_mb"`
}

// StorageConfig holds paths for the database, the template index and uploaded files.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	UploadsDir     string `yaml:"uploads_dir"`
	ImagesDir      string `yaml:"images_dir"`
	ReportsDir     string `yaml:"reports_dir"`
	LetterheadsDir string `yaml:"letterheads_dir"`
}

// ReportConfig holds document layout settings for exported reports.
type ReportConfig struct {
	Title            string  `yaml:"title"`
	ImageWidthInches float64 `yaml:"image_width_inches"`
	CellWidthInches  float64 `yaml:"cell_width_inches"`
}

// CacheConfig holds the read-through file cache settings (letterheads and exam images).
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxEntryBytes   int64         `yaml:"max_entry_bytes"`
}

// ExportConfig holds export throttling and loading settings.
type ExportConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	LoadWorkers   int     `yaml:"load_workers"`
}

// WatchConfig holds upload directory watch settings.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether to watch upload directories; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand before defaults so upload subdirectories derive from the expanded root.
	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.UploadsDir = expandPath(cfg.Storage.UploadsDir, configDir)
	cfg.Storage.ImagesDir = expandPath(cfg.Storage.ImagesDir, configDir)
	cfg.Storage.ReportsDir = expandPath(cfg.Storage.ReportsDir, configDir)
	cfg.Storage.LetterheadsDir = expandPath(cfg.Storage.LetterheadsDir, configDir)

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// UploadDirs returns every directory the server writes uploaded or generated files to.
func (s *StorageConfig) UploadDirs() []string {
	return []string{s.ImagesDir, s.ReportsDir, s.LetterheadsDir}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
