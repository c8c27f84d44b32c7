package fileutils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shishobooks/folio/pkg/errcodes"
)

// MaxNameLength caps a single sanitized path segment, in bytes.
const MaxNameLength = 200

// MaxCollisionSuffix bounds the " [n]" search in UniquePath.
const MaxCollisionSuffix = 1000

var (
	invalidCharsPattern   = regexp.MustCompile(`[\\/:*?"<>|]`)
	controlCharsPattern   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	multipleSpacesPattern = regexp.MustCompile(`\s+`)
	suffixPattern         = regexp.MustCompile(` \[(\d+)\]$`)
)

// SanitizeFilename makes name safe to use as a single path segment on any
// common filesystem. Path separators and other reserved characters become
// "-", whitespace is collapsed, other control characters are dropped, and leading
// or trailing spaces and dots are trimmed.
func SanitizeFilename(name string) string {
	// Replace smart quotes with their plain forms first so the reserved
	// double quote is caught below.
	name = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(name)

	name = invalidCharsPattern.ReplaceAllString(name, "-")
	// Tabs and newlines count as whitespace, so collapse before the
	// remaining control characters are dropped.
	name = multipleSpacesPattern.ReplaceAllString(name, " ")
	name = controlCharsPattern.ReplaceAllString(name, "")

	// Trim spaces and dots from the ends (Windows doesn't like trailing dots)
	name = strings.Trim(name, " .")

	if len(name) > MaxNameLength {
		name = TruncateUTF8(name, MaxNameLength)
		name = strings.Trim(name, " .")
	}

	return name
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune.
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// WithSuffix returns path with " [n]" inserted before its extension.
func WithSuffix(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s [%d]%s", strings.TrimSuffix(path, ext), n, ext)
}

// UniquePath returns path if taken reports it free, otherwise the first free
// "Name [n].ext" variant counting up from 1. It fails with a collision error
// once MaxCollisionSuffix variants are taken.
func UniquePath(path string, taken func(string) bool) (string, error) {
	if !taken(path) {
		return path, nil
	}
	for i := 1; i <= MaxCollisionSuffix; i++ {
		candidate := WithSuffix(path, i)
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return "", errcodes.CollisionExhausted(path)
}

// IsSuffixedVariant reports whether path is target itself or target with a
// " [n]" suffix, which is what UniquePath may have produced for it.
func IsSuffixedVariant(path, target string) bool {
	if path == target {
		return true
	}
	ext := filepath.Ext(target)
	if filepath.Ext(path) != ext || filepath.Dir(path) != filepath.Dir(target) {
		return false
	}
	stem := strings.TrimSuffix(path, ext)
	loc := suffixPattern.FindStringIndex(stem)
	if loc == nil {
		return false
	}
	return stem[:loc[0]] == strings.TrimSuffix(target, ext)
}
