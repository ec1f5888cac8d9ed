package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskFiles_ReadWriteRemove(t *testing.T) {
	dir := t.TempDir()
	files := NewDiskFiles()
	path := filepath.Join(dir, "reports", "laudo_1.docx")

	if _, err := files.ReadFile(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadFile missing: got %v, want ErrNotFound", err)
	}

	if err := files.WriteFile(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := files.WriteFile(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := files.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("ReadFile = %q, want second", got)
	}
	if !files.Exists(path) {
		t.Error("Exists should be true after write")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the report in the directory, got %d entries", len(entries))
	}

	if err := files.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := files.Remove(path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if files.Exists(path) {
		t.Error("Exists should be false after remove")
	}
}

func TestDiskFiles_Usage(t *testing.T) {
	dir := t.TempDir()
	files := NewDiskFiles()

	db := filepath.Join(dir, "ecolaudo.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	images := filepath.Join(dir, "uploads", "images")
	if err := os.MkdirAll(images, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(images, "a.png"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(images, "b.png"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"directory", []string{images}, 3},
		{"file and directory", []string{db, images}, 8},
		{"missing skipped", []string{db, filepath.Join(dir, "nonexistent"), images}, 8},
		{"empty skipped", []string{"", db}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := files.Usage(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Usage = %d, want %d", got, tt.want)
			}
		})
	}
}
