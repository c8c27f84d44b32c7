package enrichment

import (
	"regexp"
	"strings"
	"unicode"
)

// searchExtensions are stripped from the end of titles that were taken from a
// filename.
var searchExtensions = []string{".epub", ".pdf", ".mobi", ".azw3", ".azw", ".fb2", ".djvu", ".cbz"}

var (
	// releaseTagPattern matches bracketed download tags like "[calibre]" or
	// "(z-lib.org)".
	releaseTagPattern    = regexp.MustCompile(`(?i)\s*[\[(][^\])]*(?:calibre|z-lib|epub|pdf|lib\.org|libgen|www\.|http)[^\])]*[\])]`)
	editionNumberPattern = regexp.MustCompile(`\s*\(\d+\)\s*$`)
)

// junkAuthorMarkers mark author fields that name nobody in particular.
var junkAuthorMarkers = []string{"unknown", "various"}

// CleanSearchTitle strips the noise file names and download sites leave in
// titles so a text search has a chance of matching. It returns "" when
// nothing searchable is left.
func CleanSearchTitle(title string) string {
	for _, ext := range searchExtensions {
		if len(title) >= len(ext) && strings.EqualFold(title[len(title)-len(ext):], ext) {
			title = title[:len(title)-len(ext)]
			break
		}
	}
	title = releaseTagPattern.ReplaceAllString(title, "")
	title = editionNumberPattern.ReplaceAllString(title, "")
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.Join(strings.Fields(title), " ")
	return strings.Trim(title, " -_.,;:")
}

// CleanSearchAuthor returns author trimmed, or "" when it is too short, mostly
// not letters, or a placeholder like "Unknown" or "Various".
func CleanSearchAuthor(author string) string {
	author = strings.Join(strings.Fields(author), " ")
	runes := []rune(author)
	if len(runes) < 2 {
		return ""
	}
	letters := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < len(runes)/2 {
		return ""
	}
	lower := strings.ToLower(author)
	if lower == "author" {
		return ""
	}
	for _, marker := range junkAuthorMarkers {
		if strings.Contains(lower, marker) {
			return ""
		}
	}
	return author
}
