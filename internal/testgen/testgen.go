// Package testgen generates EPUB and PDF fixtures with configurable metadata
// for scanner, extractor and organizer tests.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	// Version is the OPF package version, "2.0" or "3.0" (the default).
	// EPUB 2 packages carry roles, series and cover in opf attributes and
	// calibre metas; EPUB 3 packages use refines metas and manifest
	// properties instead.
	Version string
	// OPFPath is where container.xml points, defaults to "OEBPS/content.opf".
	OPFPath       string
	Title         string
	Subtitle      string
	Publisher     string
	Authors       []string
	Identifiers   []EPUBIdentifier
	Language      string // defaults to "en"
	Date          string
	Description   string
	Subjects      []string
	Series        string
	SeriesNumber  *float64
	ChapterText   string
	HasCover      bool
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
}

// EPUBIdentifier is a dc:identifier entry. Scheme is written as opf:scheme
// when set.
type EPUBIdentifier struct {
	Scheme string
	Value  string
}

// PDFOptions configures the generated PDF file.
type PDFOptions struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	CreationDate string   // PDF date string, e.g. "D:20190314120000Z"
	Pages        []string // text of each page; one empty page when nil
}

// TempDir creates a temporary directory for testing and registers cleanup.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempLibraryDir creates an empty directory to scan or organize into.
func TempLibraryDir(t *testing.T) string {
	t.Helper()
	return TempDir(t, "testgen-library-*")
}

// CreateSubDir creates a subdirectory within the given parent directory.
// Returns the full path to the created subdirectory.
func CreateSubDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", dir, err)
	}
	return dir
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}

// StringPtr is a helper to create a pointer to a string.
func StringPtr(s string) *string {
	return &s
}
