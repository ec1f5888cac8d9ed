package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/report"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteStatus_JSON(t *testing.T) {
	indexed := uint64(57)
	s := &Status{Patients: 2, Exams: 3, Templates: 57, IndexedTemplates: &indexed,
		Config: &StatusConfig{DatabasePath: "/tmp/ecolaudo.db"}}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Status
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Exams != 3 || decoded.IndexedTemplates == nil || *decoded.IndexedTemplates != 57 {
		t.Errorf("decoded: %+v", decoded)
	}
	if decoded.CachedFiles != nil || strings.Contains(buf.String(), "cached_files") {
		t.Error("unset optional fields should be omitted")
	}
}

func TestWriteStatus_text(t *testing.T) {
	usage := int64(2048)
	s := &Status{Patients: 1, DiskUsageBytes: &usage, Config: &StatusConfig{
		ReportsDir: "/data/reports", WatchedDirectories: []string{"/data/images"},
	}}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"patients:           1", "disk_usage_bytes:   2048", "# configuration", "reports_dir:        /data/reports", "watching:           /data/images"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "indexed_templates") || strings.Contains(out, "database_path") {
		t.Errorf("unset fields printed:\n%s", out)
	}
}

func TestWriteTemplates(t *testing.T) {
	ts := []*models.TemplateText{
		{Organ: "Fígado", Category: models.CategoryNormal, Title: "Normal", Text: "com dimensões, contornos, ecogenicidade e ecotextura preservados, sem evidências de alterações focais ou difusas."},
	}
	var buf bytes.Buffer
	if err := WriteTemplates(&buf, ts, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "ORGAN") || !strings.Contains(out, "Fígado") || !strings.Contains(out, "...") {
		t.Errorf("text output:\n%s", out)
	}

	buf.Reset()
	if err := WriteTemplates(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No templates found") {
		t.Errorf("empty text output: %q", buf.String())
	}

	buf.Reset()
	if err := WriteTemplates(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON output: %q", buf.String())
	}
}

func TestWriteArtifacts(t *testing.T) {
	arts := []*report.Artifact{{ExamID: "e1", Path: "/r/laudo_e1.docx", Size: 10, Checksum: "abc", Data: []byte("x")}}
	var buf bytes.Buffer
	if err := WriteArtifacts(&buf, arts, OutputText); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "e1  /r/laudo_e1.docx (10 bytes)\n" {
		t.Errorf("text output: %q", got)
	}

	buf.Reset()
	if err := WriteArtifacts(&buf, arts, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `"Data"`) || !strings.Contains(buf.String(), `"suggested_filename"`) {
		t.Errorf("json output: %s", buf.String())
	}
}
