package organizer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/fileutils"
)

// MetadataDir is the hidden directory inside the library root that holds
// transaction logs. Scans never descend into it.
const MetadataDir = ".folio"

// LogEntry records one executed filesystem operation.
type LogEntry struct {
	Action    string    `json:"action"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	FileID    int       `json:"file_id,omitempty"`
}

// writeLog persists entries as a JSON array under root's metadata directory.
// The file appears atomically and is never overwritten.
func writeLog(root string, entries []LogEntry, now time.Time) (string, error) {
	dir := filepath.Join(root, MetadataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}

	path := filepath.Join(dir, fmt.Sprintf("organizer-log-%d.json", now.UnixMilli()))
	path, err = fileutils.UniquePath(path, fileutils.Exists)
	if err != nil {
		return "", err
	}
	if err := fileutils.WriteFileAtomic(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadLog loads a transaction log written by Apply.
func ReadLog(path string) ([]LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errcodes.NotFound("Organizer log")
		}
		return nil, errors.WithStack(err)
	}
	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errcodes.ValidationError(fmt.Sprintf("Organizer log %s is malformed.", path))
	}
	return entries, nil
}

// libraryRootForLog returns the library root a log was written under.
func libraryRootForLog(path string) string {
	return filepath.Dir(filepath.Dir(path))
}
