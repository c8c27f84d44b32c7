package scanner

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/fileutils"
)

// expectedMimeTypes maps extensions to the content types we accept for them.
// Files can have any extension, so a file whose content doesn't match is
// reported and skipped rather than parsed.
var expectedMimeTypes = map[string]map[string]struct{}{
	".epub": {"application/epub+zip": {}, "application/zip": {}},
	".pdf":  {"application/pdf": {}},
}

type fingerprint struct {
	sha256       string
	mimeType     string
	mimeMismatch bool
	err          error
}

// fingerprintFile detects the content type of the file and hashes it when
// the type is acceptable.
func fingerprintFile(path, ext string) fingerprint {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fingerprint{err: errors.WithStack(err)}
	}
	fp := fingerprint{mimeType: mtype.String()}
	if expected, ok := expectedMimeTypes[ext]; ok {
		matched := false
		for m := mtype; m != nil; m = m.Parent() {
			if _, ok := expected[m.String()]; ok {
				matched = true
				break
			}
		}
		if !matched {
			fp.mimeMismatch = true
			return fp
		}
	}

	fp.sha256, fp.err = fileutils.HashFile(path)
	return fp
}
