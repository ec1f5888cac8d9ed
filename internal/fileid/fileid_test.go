package fileid

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReportPath(t *testing.T) {
	got := ReportPath("/data/reports", "abc-123")
	want := filepath.Join("/data/reports", "laudo_abc-123.docx")
	if got != want {
		t.Errorf("ReportPath = %q, want %q", got, want)
	}
	if ReportPath("/r", "x") != ReportPath("/r", "x") {
		t.Error("same exam should give the same path")
	}
	if got := ReportPath("/r", "../evil"); filepath.Dir(got) != "/r" {
		t.Errorf("exam id must not escape the reports dir: %q", got)
	}
}

func TestSuggestedFilename(t *testing.T) {
	date := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	if got := SuggestedFilename("Rex", date); got != "laudo_Rex_20240305.docx" {
		t.Errorf("SuggestedFilename = %q", got)
	}
	if got := SuggestedFilename("Mia/Luna", date); got != "laudo_Mia_Luna_20240305.docx" {
		t.Errorf("SuggestedFilename with slash = %q", got)
	}
}

func TestNewImageName(t *testing.T) {
	id, name := NewImageName("Foto Baço.JPG")
	if id == "" || name != id+".jpg" {
		t.Errorf("NewImageName = %q, %q", id, name)
	}
	id2, _ := NewImageName("a.png")
	if id == id2 {
		t.Error("ids should be unique")
	}
	if _, name := NewImageName("noext"); strings.Contains(name, ".") {
		t.Errorf("name without extension = %q", name)
	}
}

func TestNewLetterheadName(t *testing.T) {
	name := NewLetterheadName("/tmp/Timbrado.DOCX")
	if !strings.HasPrefix(name, "letterhead_") || !strings.HasSuffix(name, ".docx") {
		t.Errorf("NewLetterheadName = %q", name)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("laudo"))
	if a != ContentHash([]byte("laudo")) {
		t.Error("hash should be deterministic")
	}
	if a == ContentHash([]byte("laudo2")) {
		t.Error("different content should give different hashes")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d", len(a))
	}
}
