package config

import (
	"path/filepath"
	"time"
)

// DefaultReportTitle is the heading printed on every exported report.
const DefaultReportTitle = "LAUDO DE ULTRASSONOGRAFIA ABDOMINAL"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ecolaudo/data/db/ecolaudo.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/ecolaudo/data/indices/templates"
	}
	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = "/usr/local/var/ecolaudo/uploads"
	}
	if cfg.Storage.ImagesDir == "" {
		cfg.Storage.ImagesDir = filepath.Join(cfg.Storage.UploadsDir, "images")
	}
	if cfg.Storage.ReportsDir == "" {
		cfg.Storage.ReportsDir = filepath.Join(cfg.Storage.UploadsDir, "reports")
	}
	if cfg.Storage.LetterheadsDir == "" {
		cfg.Storage.LetterheadsDir = filepath.Join(cfg.Storage.UploadsDir, "letterheads")
	}
	if cfg.Report.Title == "" {
		cfg.Report.Title = DefaultReportTitle
	}
	if cfg.Report.ImageWidthInches == 0 {
		cfg.Report.ImageWidthInches = 2.5
	}
	if cfg.Report.CellWidthInches == 0 {
		cfg.Report.CellWidthInches = 3.2
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Minute
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = time.Hour
	}
	if cfg.Cache.MaxEntryBytes == 0 {
		cfg.Cache.MaxEntryBytes = 8 << 20
	}
	if cfg.Export.RatePerSecond == 0 {
		cfg.Export.RatePerSecond = 2
	}
	if cfg.Export.Burst == 0 {
		cfg.Export.Burst = 4
	}
	if cfg.Export.LoadWorkers == 0 {
		cfg.Export.LoadWorkers = 2
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
