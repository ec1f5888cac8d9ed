// Package cli formats command output for ecolaudo.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/report"
	"github.com/hyperjump/ecolaudo/pkg/utils"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// Status is the record and index summary printed by the status command.
type Status struct {
	Patients         int64         `json:"patients"`
	Exams            int64         `json:"exams"`
	Templates        int64         `json:"templates"`
	ReferenceValues  int64         `json:"reference_values"`
	IndexedTemplates *uint64       `json:"indexed_templates,omitempty"`
	CachedFiles      *int          `json:"cached_files,omitempty"`
	DiskUsageBytes   *int64        `json:"disk_usage_bytes,omitempty"`
	Config           *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the configuration part of Status.
type StatusConfig struct {
	DatabasePath       string   `json:"database_path,omitempty"`
	BleveIndexPath     string   `json:"bleve_index_path,omitempty"`
	ImagesDir          string   `json:"images_dir,omitempty"`
	ReportsDir         string   `json:"reports_dir,omitempty"`
	LetterheadsDir     string   `json:"letterheads_dir,omitempty"`
	ReportTitle        string   `json:"report_title,omitempty"`
	WatchedDirectories []string `json:"watched_directories,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStatus writes status to w in the given format.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "patients:           %d\n", s.Patients)
	fmt.Fprintf(w, "exams:              %d\n", s.Exams)
	fmt.Fprintf(w, "templates:          %d\n", s.Templates)
	fmt.Fprintf(w, "reference_values:   %d\n", s.ReferenceValues)
	if s.IndexedTemplates != nil {
		fmt.Fprintf(w, "indexed_templates:  %d   # templates in the search index\n", *s.IndexedTemplates)
	}
	if s.CachedFiles != nil {
		fmt.Fprintf(w, "cached_files:       %d\n", *s.CachedFiles)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database, index and uploads on disk\n", *s.DiskUsageBytes)
	}
	if c := s.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, kv := range [][2]string{
			{"database_path", c.DatabasePath},
			{"bleve_index_path", c.BleveIndexPath},
			{"images_dir", c.ImagesDir},
			{"reports_dir", c.ReportsDir},
			{"letterheads_dir", c.LetterheadsDir},
			{"report_title", c.ReportTitle},
		} {
			if kv[1] != "" {
				fmt.Fprintf(w, "%-19s %s\n", kv[0]+":", kv[1])
			}
		}
		for _, d := range c.WatchedDirectories {
			fmt.Fprintf(w, "watching:           %s\n", d)
		}
	}
	return nil
}

// WriteTemplates writes templates to w, one line each in text format.
func WriteTemplates(w io.Writer, ts []*models.TemplateText, format OutputFormat) error {
	if format == OutputJSON {
		if ts == nil {
			ts = []*models.TemplateText{}
		}
		return writeJSON(w, ts)
	}
	if len(ts) == 0 {
		fmt.Fprintln(w, "No templates found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORGAN\tCATEGORY\tTITLE\tTEXT")
	for _, t := range ts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Organ, t.Category, t.Title, utils.Truncate(t.Text.String(), 60))
	}
	return tw.Flush()
}

// WriteArtifacts writes exported report paths to w.
func WriteArtifacts(w io.Writer, arts []*report.Artifact, format OutputFormat) error {
	if format == OutputJSON {
		if arts == nil {
			arts = []*report.Artifact{}
		}
		return writeJSON(w, arts)
	}
	for _, a := range arts {
		fmt.Fprintf(w, "%s  %s (%d bytes)\n", a.ExamID, a.Path, a.Size)
	}
	return nil
}
