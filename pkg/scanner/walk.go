package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// metadataDir holds the organizer's transaction logs and is never scanned.
const metadataDir = ".folio"

type discoveredFile struct {
	path    string
	size    int64
	modTime time.Time
}

type walkProblem struct {
	path    string
	dir     bool
	message string
}

// walk lists every allowlisted file under root in lexical order. It keeps an
// explicit stack of directories instead of recursing. Unreadable directories
// and files are reported as problems and skipped; only a root that cannot be
// listed is an error.
func walk(root string, extensions map[string]struct{}) ([]discoveredFile, []walkProblem, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, nil, errors.Errorf("%s is not a directory", root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	var (
		files    []discoveredFile
		problems []walkProblem
	)
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			problems = append(problems, walkProblem{path: dir, dir: true, message: err.Error()})
			continue
		}

		// Entries come back sorted; push subdirectories in reverse so they
		// pop in order.
		var subdirs []string
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if entry.Name() == metadataDir {
					continue
				}
				subdirs = append(subdirs, path)
				continue
			}
			if _, ok := extensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
				continue
			}

			var fi fs.FileInfo
			if entry.Type()&fs.ModeSymlink != 0 {
				// Follow links to files, but never into directories.
				fi, err = os.Stat(path)
			} else {
				fi, err = entry.Info()
			}
			if err != nil {
				problems = append(problems, walkProblem{path: path, message: err.Error()})
				continue
			}
			if !fi.Mode().IsRegular() {
				continue
			}

			files = append(files, discoveredFile{path: path, size: fi.Size(), modTime: fi.ModTime()})
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return files, problems, nil
}

// normalizeExtensions lowercases the allowlist and makes sure every entry
// starts with a dot.
func normalizeExtensions(exts []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
