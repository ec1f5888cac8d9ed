// Package main is the ecolaudo CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/backup"
	"github.com/hyperjump/ecolaudo/internal/catalog"
	"github.com/hyperjump/ecolaudo/internal/cli"
	"github.com/hyperjump/ecolaudo/internal/config"
	"github.com/hyperjump/ecolaudo/internal/extract"
	"github.com/hyperjump/ecolaudo/internal/filecache"
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/report"
	"github.com/hyperjump/ecolaudo/internal/server"
	"github.com/hyperjump/ecolaudo/internal/storage"
	"github.com/hyperjump/ecolaudo/internal/watcher"
	"github.com/hyperjump/ecolaudo/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ecolaudo/config.yaml"
	defaultServerURL  = "http://localhost:8001"
	passphraseEnv     = "ECOLAUDO_BACKUP_PASSPHRASE"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "export":
		runExport()
	case "seed":
		runSeed()
	case "templates":
		runTemplates()
	case "references":
		runReferences()
	case "backup":
		runBackup()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ecolaudo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fatalf prints to stderr and exits with status 1.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, builds the logger and initializes components for one-shot commands.
func setup(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, logger, components
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, cache invalidation, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := components.Catalog.EnsureIndex(ctx); err != nil {
		logger.Warn("template index rebuild failed", zap.Error(err))
	}

	deps := components.ServerDeps()
	if cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.Option{watcher.WithDebounce(cfg.Watch.Debounce)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		cache := components.Cache
		watchSvc := watcher.New(
			[]string{cfg.Storage.ImagesDir, cfg.Storage.LetterheadsDir},
			cache.Invalidate,
			cache.Invalidate,
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		deps.Watch = watchSvc
	}

	srv := server.NewServer(cfg, deps, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseOutput(*outputFormat)

	if fs.NArg() < 1 {
		fmt.Println("Usage: ecolaudo export [flags] <exam-id>...")
		os.Exit(1)
	}
	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	arts, err := components.Exporter.ExportMany(context.Background(), fs.Args())
	if err != nil {
		fatalf("Export failed: %v", err)
	}
	if err := cli.WriteArtifacts(os.Stdout, arts, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	res, err := components.Catalog.Seed(context.Background())
	if err != nil {
		fatalf("Seed failed: %v", err)
	}
	if !res.Seeded {
		fmt.Println("Defaults already initialized")
		return
	}
	fmt.Printf("Seeded %d templates and %d reference values\n", res.Templates, res.ReferenceValues)
}

func runTemplates() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ecolaudo templates <search|import|reindex> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("templates "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	organ := fs.String("organ", "", "organ name")
	category := fs.String("category", "", "category: normal, finding or conclusion")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fuzzy := fs.Bool("fuzzy", false, "enable typo tolerance")
	limit := fs.Int("limit", 20, "maximum number of results")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	format := parseOutput(*outputFormat)

	switch sub {
	case "search":
		_, logger, components := setup(*configPath)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		if err := components.Catalog.EnsureIndex(ctx); err != nil {
			fatalf("Index failed: %v", err)
		}
		query := buildSearchQuery(fs.Args())
		ts, err := components.Catalog.Search(ctx, query, catalog.SearchOptions{
			Organ: *organ, Category: *category, Limit: *limit, Fuzzy: *fuzzy,
		})
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		if len(ts) == 0 && query != "" {
			if c, err := components.Catalog.Suggest(ctx, query); err == nil && c.HasCorrections() {
				fmt.Fprintf(os.Stderr, "Did you mean: %s\n", c.Corrected)
			}
		}
		if err := cli.WriteTemplates(os.Stdout, ts, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "import":
		if fs.NArg() < 1 || *organ == "" {
			fmt.Println("Usage: ecolaudo templates import --organ <organ> [--category normal] <file>")
			os.Exit(1)
		}
		path := fs.Arg(0)
		cat := *category
		if cat == "" {
			cat = models.CategoryNormal
		}
		_, logger, components := setup(*configPath)
		defer logger.Sync()
		defer components.Close()
		text, err := components.Extractor.Extract(path)
		if err != nil {
			fatalf("Read %s failed: %v", path, err)
		}
		ts, err := components.Catalog.ImportTemplates(context.Background(), extract.SplitParagraphs(text), *organ, cat)
		if err != nil {
			fatalf("Import failed: %v", err)
		}
		if err := cli.WriteTemplates(os.Stdout, ts, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "reindex":
		_, logger, components := setup(*configPath)
		defer logger.Sync()
		defer components.Close()
		if err := components.Catalog.Reindex(context.Background()); err != nil {
			fatalf("Reindex failed: %v", err)
		}
		n, _ := components.Catalog.IndexedCount()
		fmt.Printf("Indexed %d templates\n", n)
	default:
		fatalf("Unknown templates command: %s", sub)
	}
}

func runReferences() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ecolaudo references <export|import> [flags] <file.xlsx>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("references "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	species := fs.String("species", "", "only export ranges of this species")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	if fs.NArg() < 1 {
		fatalf("Usage: ecolaudo references %s [flags] <file.xlsx>", sub)
	}
	path := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	switch sub {
	case "export":
		refs, err := components.Storage.ListReferenceValues(ctx, models.ReferenceFilter{Species: *species})
		if err != nil {
			fatalf("List reference values failed: %v", err)
		}
		f, err := os.Create(path)
		if err != nil {
			fatalf("Create %s failed: %v", path, err)
		}
		if err := catalog.WriteReferenceValues(f, refs); err != nil {
			_ = f.Close()
			fatalf("Write spreadsheet failed: %v", err)
		}
		if err := f.Close(); err != nil {
			fatalf("Close %s failed: %v", path, err)
		}
		fmt.Printf("Exported %d reference values to %s\n", len(refs), path)
	case "import":
		f, err := os.Open(path)
		if err != nil {
			fatalf("Open %s failed: %v", path, err)
		}
		defer f.Close()
		refs, err := catalog.ReadReferenceValues(f)
		if err != nil {
			fatalf("Read spreadsheet failed: %v", err)
		}
		if err := components.Storage.BatchCreateReferenceValues(ctx, refs); err != nil {
			fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %d reference values\n", len(refs))
	default:
		fatalf("Unknown references command: %s", sub)
	}
}

func runBackup() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ecolaudo backup <export|import> [flags] <file>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("backup "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	passphrase := fs.String("passphrase", os.Getenv(passphraseEnv), "backup passphrase (default from "+passphraseEnv+")")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	if fs.NArg() < 1 {
		fatalf("Usage: ecolaudo backup %s [flags] <file>", sub)
	}
	path := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	switch sub {
	case "export":
		data, err := components.Backup.Export(ctx, *passphrase)
		if err != nil {
			fatalf("Backup failed: %v", err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			fatalf("Write %s failed: %v", path, err)
		}
		fmt.Printf("Backup written to %s (encrypted: %t)\n", path, *passphrase != "")
	case "import":
		data, err := os.ReadFile(path)
		if err != nil {
			fatalf("Read %s failed: %v", path, err)
		}
		snap, err := components.Backup.Import(ctx, data, *passphrase)
		if err != nil {
			fatalf("Restore failed: %v", err)
		}
		if err := components.Catalog.Reindex(ctx); err != nil {
			logger.Warn("reindex after restore failed", zap.Error(err))
		}
		fmt.Printf("Restored %d patients, %d exams, %d templates and %d reference values\n",
			len(snap.Patients), len(snap.Exams), len(snap.Templates), len(snap.ReferenceValues))
	default:
		fatalf("Unknown backup command: %s", sub)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	var status *cli.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res
	} else {
		cfg, logger, components := setup(*configPath)
		defer logger.Sync()
		defer components.Close()
		res, err := collectStatus(context.Background(), cfg, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// collectStatus reads counts and index size straight from the components.
func collectStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	counts, err := c.Storage.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	st := cfg.Storage
	status := &cli.Status{
		Patients:        counts.Patients,
		Exams:           counts.Exams,
		Templates:       counts.Templates,
		ReferenceValues: counts.ReferenceValues,
		Config: &cli.StatusConfig{
			DatabasePath:   st.DatabasePath,
			BleveIndexPath: st.BleveIndexPath,
			ImagesDir:      st.ImagesDir,
			ReportsDir:     st.ReportsDir,
			LetterheadsDir: st.LetterheadsDir,
			ReportTitle:    cfg.Report.Title,
		},
	}
	if n, err := c.Catalog.IndexedCount(); err == nil {
		status.IndexedTemplates = &n
	}
	if usage, err := c.Files.Usage(append([]string{st.DatabasePath, st.BleveIndexPath}, st.UploadDirs()...)...); err == nil {
		status.DiskUsageBytes = &usage
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds the initialized services shared by every command.
type Components struct {
	Storage   *storage.SQLiteStorage
	Files     *storage.DiskFiles
	Cache     *filecache.Cache
	Index     *catalog.TemplateIndex
	Catalog   *catalog.Catalog
	Exporter  *report.Exporter
	Backup    *backup.Service
	Extractor *extract.Extractor
}

// Close releases the database and the index.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

// ServerDeps returns the components as server dependencies.
func (c *Components) ServerDeps() server.Deps {
	return server.Deps{
		Store:     c.Storage,
		Files:     c.Files,
		Cache:     c.Cache,
		Catalog:   c.Catalog,
		Exporter:  c.Exporter,
		Backup:    c.Backup,
		Extractor: c.Extractor,
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	index, err := catalog.NewTemplateIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize template index: %w", err)
	}

	files := storage.NewDiskFiles()
	cache := filecache.New(files, cfg.Cache.TTL, cfg.Cache.CleanupInterval,
		filecache.WithMaxEntryBytes(cfg.Cache.MaxEntryBytes),
		filecache.WithLogger(logger),
	)
	assembler := report.NewAssembler(cache,
		report.WithLogger(logger),
		report.WithLayout(report.Layout{
			Title:            cfg.Report.Title,
			ImageWidthInches: cfg.Report.ImageWidthInches,
			CellWidthInches:  cfg.Report.CellWidthInches,
		}),
	)
	exporter := report.NewExporter(store, assembler, files, cfg.Storage.ReportsDir,
		report.WithExportLogger(logger),
		report.WithWorkers(cfg.Export.LoadWorkers),
	)

	return &Components{
		Storage:   store,
		Files:     files,
		Cache:     cache,
		Index:     index,
		Catalog:   catalog.New(store, index, catalog.WithLogger(logger)),
		Exporter:  exporter,
		Backup:    backup.NewService(store, backup.WithLogger(logger)),
		Extractor: extract.NewExtractor(),
	}, nil
}

func printUsage() {
	fmt.Println(`ecolaudo - Veterinary ultrasound report composer

Usage:
  ecolaudo server [flags]                         Start the HTTP server
  ecolaudo export [flags] <exam-id>...            Write .docx reports for exams
  ecolaudo seed [flags]                           Insert default templates and reference values
  ecolaudo templates search [flags] <query>       Search finding templates
  ecolaudo templates import [flags] <file>        Import paragraphs of a file as templates
  ecolaudo templates reindex [flags]              Rebuild the template search index
  ecolaudo references export [flags] <file.xlsx>  Write reference values to a spreadsheet
  ecolaudo references import [flags] <file.xlsx>  Add reference values from a spreadsheet
  ecolaudo backup export [flags] <file>           Write a backup of every record
  ecolaudo backup import [flags] <file>           Replace every record with a backup
  ecolaudo status [flags]                         Show record and index status
  ecolaudo version                                Show version
  ecolaudo help                                   Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ecolaudo/config.yaml)
  --output string    Output format for export, templates and status: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Templates Flags:
  --organ string     Organ name (required for import, filter for search)
  --category string  normal, finding or conclusion (default for import: normal)
  --fuzzy            Enable typo tolerance in search
  --limit int        Maximum number of search results (default: 20)

Backup Flags:
  --passphrase string  Encrypt or decrypt with this passphrase (default: $ECOLAUDO_BACKUP_PASSPHRASE)

Status Flags:
  --server string    Server URL (default: http://localhost:8001). Use --server "" for direct storage.

Examples:
  ecolaudo server
  ecolaudo seed
  ecolaudo export 6f1c2a3e-0d4b-4c1e-9a57-1f2e3d4c5b6a
  ecolaudo templates search --organ Fígado --fuzzy hiperecoica
  ecolaudo templates import --organ Baço --category finding achados.docx
  ecolaudo references export valores.xlsx
  ecolaudo backup export --passphrase s3nha backup.json
  ecolaudo status --server "" --output json`)
}
