package organizer

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/fileutils"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/models"
)

// Placeholders rendered for values an item doesn't have.
const (
	UnknownAuthor = "Unknown Author"
	UnknownTitle  = "Untitled"
	UnknownValue  = "Unknown"
)

const (
	TokenAuthor = "Author"
	TokenTitle  = "Title"
	TokenYear   = "Year"
	TokenISBN13 = "ISBN13"
	TokenExt    = "ext"
)

var tokenPattern = regexp.MustCompile(`\{([^{}]*)\}`)

var knownTokens = map[string]struct{}{
	TokenAuthor: {},
	TokenTitle:  {},
	TokenYear:   {},
	TokenISBN13: {},
	TokenExt:    {},
}

// TemplateValues are the raw token values for one file. Empty values render as
// their placeholder.
type TemplateValues struct {
	Author string
	Title  string
	Year   string
	ISBN13 string
	Ext    string
}

// ValuesFor collects the token values for file, which belongs to item. Item
// authors and identifiers must be loaded.
func ValuesFor(item *models.Item, file *models.File) TemplateValues {
	v := TemplateValues{
		Title: item.Title,
		Ext:   strings.ToLower(strings.TrimPrefix(file.Extension, ".")),
	}
	if v.Ext == "" {
		v.Ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Path), "."))
	}
	if names := item.AuthorNames(); len(names) > 0 {
		v.Author = names[0]
	}
	if item.PublishedYear != nil {
		v.Year = strconv.Itoa(*item.PublishedYear)
	}
	if id := item.PreferredIdentifier(models.IdentifierTypeISBN13, models.IdentifierTypeISBN10); id != nil {
		v.ISBN13 = identifiers.ToISBN13(id.Value)
	}
	return v
}

func (v TemplateValues) lookup(token string) string {
	var value, fallback string
	switch token {
	case TokenAuthor:
		value, fallback = v.Author, UnknownAuthor
	case TokenTitle:
		value, fallback = v.Title, UnknownTitle
	case TokenYear:
		value, fallback = v.Year, UnknownValue
	case TokenISBN13:
		value, fallback = v.ISBN13, UnknownValue
	case TokenExt:
		value, fallback = v.Ext, UnknownValue
	}
	if value = fileutils.SanitizeFilename(value); value == "" {
		return fallback
	}
	return value
}

// ValidateTemplate checks that tmpl is a relative, slash separated path made of
// known tokens whose every segment stays inside the library root.
func ValidateTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errors.New("template is empty")
	}
	if strings.HasPrefix(tmpl, "/") || strings.HasPrefix(tmpl, `\`) || filepath.IsAbs(tmpl) || filepath.VolumeName(tmpl) != "" {
		return errors.Errorf("template %q must be relative to the library root", tmpl)
	}
	for _, m := range tokenPattern.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := knownTokens[m[1]]; !ok {
			return errors.Errorf("template %q has unknown token {%s}", tmpl, m[1])
		}
	}
	for _, segment := range strings.Split(tmpl, "/") {
		literal := strings.TrimSpace(segment)
		switch {
		case literal == "":
			return errors.Errorf("template %q has an empty path segment", tmpl)
		case literal == "." || literal == "..":
			return errors.Errorf("template %q must stay inside the library root", tmpl)
		case strings.Contains(segment, `\`):
			return errors.Errorf("template %q must use / as the path separator", tmpl)
		}
	}
	return nil
}

// RenderTemplate renders tmpl for v into a path relative to the library root.
// Each token value is sanitized on its own, so values can never introduce new
// path segments, and each rendered segment is sanitized again as a whole. A
// trailing ".{ext}" survives segment length limits.
func RenderTemplate(tmpl string, v TemplateValues) (string, error) {
	if err := ValidateTemplate(tmpl); err != nil {
		return "", err
	}

	segments := strings.Split(tmpl, "/")
	rendered := make([]string, 0, len(segments))
	for i, segment := range segments {
		var ext string
		if i == len(segments)-1 && strings.HasSuffix(segment, ".{"+TokenExt+"}") {
			segment = strings.TrimSuffix(segment, ".{"+TokenExt+"}")
			ext = "." + v.lookup(TokenExt)
		}

		out := tokenPattern.ReplaceAllStringFunc(segment, func(tok string) string {
			return v.lookup(tok[1 : len(tok)-1])
		})
		out = fileutils.SanitizeFilename(out)
		if max := fileutils.MaxNameLength - len(ext); len(out) > max {
			out = fileutils.SanitizeFilename(fileutils.TruncateUTF8(out, max))
		}
		if out == "" {
			out = UnknownValue
		}
		rendered = append(rendered, out+ext)
	}

	return filepath.Join(rendered...), nil
}

// TargetPath renders tmpl for v and joins it to root. The result is verified
// to be inside root.
func TargetPath(root, tmpl string, v TemplateValues) (string, error) {
	rel, err := RenderTemplate(tmpl, v)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, rel)
	if r, err := filepath.Rel(root, target); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("rendered path %q escapes the library root", target)
	}
	return target, nil
}
