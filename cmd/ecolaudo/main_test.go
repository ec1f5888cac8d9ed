package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"hiperecoica", "-organ", "Fígado"},
			expected: []string{"-organ", "Fígado", "hiperecoica"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-fuzzy", "hiperecoica"},
			expected: []string{"-fuzzy", "hiperecoica"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"bordos arredondados"},
			expected: []string{"bordos arredondados"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"exam-1", "exam-2", "-output", "json"},
			expected: []string{"-output", "json", "exam-1", "exam-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hiperecoica"}, "hiperecoica"},
		{"multiple words", []string{"bordos", "arredondados"}, "bordos arredondados"},
		{"single quoted phrase", []string{"bordos arredondados"}, "bordos arredondados"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8001
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "test.db") {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
}

func TestInitializeComponents_SeedExportStatus(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/ecolaudo.db"
  bleve_index_path: "./data/templates"
  uploads_dir: "./uploads"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		t.Fatal(err)
	}
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	res, err := c.Catalog.Seed(ctx)
	if err != nil || !res.Seeded {
		t.Fatalf("seed: %+v, %v", res, err)
	}
	p := &models.Patient{Name: "Mia", Species: "cat", Size: "small", Sex: "female"}
	if err := c.Storage.CreatePatient(ctx, p); err != nil {
		t.Fatal(err)
	}
	e := &models.Exam{PatientID: p.ID}
	if err := c.Storage.CreateExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	arts, err := c.Exporter.ExportMany(ctx, []string{e.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 1 || filepath.Dir(arts[0].Path) != cfg.Storage.ReportsDir {
		t.Fatalf("artifacts: %+v", arts)
	}

	status, err := collectStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	if status.Patients != 1 || status.Exams != 1 || status.Templates != int64(res.Templates) {
		t.Errorf("counts: %+v", status)
	}
	if status.IndexedTemplates == nil || *status.IndexedTemplates != uint64(res.Templates) {
		t.Errorf("indexed templates: %v, want %d", status.IndexedTemplates, res.Templates)
	}
	if status.DiskUsageBytes == nil || *status.DiskUsageBytes == 0 {
		t.Error("disk usage should count the database and the report")
	}
}
