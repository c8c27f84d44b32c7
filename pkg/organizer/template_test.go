package organizer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		values   TemplateValues
		expected string
	}{
		{
			name: "all values",
			values: TemplateValues{
				Author: "Frank Herbert",
				Title:  "Dune",
				Year:   "1965",
				ISBN13: "9780441013593",
				Ext:    "epub",
			},
			expected: filepath.Join("Frank Herbert", "Dune (1965) [9780441013593].epub"),
		},
		{
			name:     "placeholders for missing values",
			values:   TemplateValues{Ext: "pdf"},
			expected: filepath.Join("Unknown Author", "Untitled (Unknown) [Unknown].pdf"),
		},
		{
			name: "values can't add path segments",
			values: TemplateValues{
				Author: "AC/DC",
				Title:  `What? "Now"`,
				Ext:    "epub",
			},
			expected: filepath.Join("AC-DC", "What- -Now- (Unknown) [Unknown].epub"),
		},
		{
			name: "dot only values use placeholders",
			values: TemplateValues{
				Author: "..",
				Title:  ".",
				Ext:    "epub",
			},
			expected: filepath.Join("Unknown Author", "Untitled (Unknown) [Unknown].epub"),
		},
		{
			name: "whitespace is collapsed",
			values: TemplateValues{
				Author: "  Ursula   K.  Le Guin ",
				Title:  "The\tLathe of\nHeaven",
				Year:   "1971",
				Ext:    "epub",
			},
			expected: filepath.Join("Ursula K. Le Guin", "The Lathe of Heaven (1971) [Unknown].epub"),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := RenderTemplate(config.DefaultOrganizerTemplate, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderTemplate_LongTitleKeepsExtension(t *testing.T) {
	t.Parallel()
	got, err := RenderTemplate("{Title}.{ext}", TemplateValues{Title: strings.Repeat("a", 400), Ext: "epub"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, ".epub"))
	assert.LessOrEqual(t, len(got), 200)
}

func TestValidateTemplate(t *testing.T) {
	t.Parallel()
	valid := []string{
		config.DefaultOrganizerTemplate,
		"{Title}.{ext}",
		"Books/{Author}/{Year}/{Title}.{ext}",
	}
	for _, tmpl := range valid {
		assert.NoError(t, ValidateTemplate(tmpl), tmpl)
	}

	invalid := []string{
		"",
		"   ",
		"/library/{Title}.{ext}",
		"../{Title}.{ext}",
		"{Author}/../../{Title}.{ext}",
		"{Author}//{Title}.{ext}",
		"./{Title}.{ext}",
		"{Publisher}/{Title}.{ext}",
		`{Author}\{Title}.{ext}`,
	}
	for _, tmpl := range invalid {
		assert.Error(t, ValidateTemplate(tmpl), tmpl)
	}
}

func TestTargetPath(t *testing.T) {
	t.Parallel()
	root := filepath.Join(string(filepath.Separator), "library")
	got, err := TargetPath(root, "{Author}/{Title}.{ext}", TemplateValues{Author: "A", Title: "T", Ext: "epub"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "A", "T.epub"), got)
}

func TestValuesFor(t *testing.T) {
	t.Parallel()
	item := &models.Item{
		Title:         "Dune",
		PublishedYear: pointerutil.Int(1965),
		Authors:       []*models.Author{{Name: "Frank Herbert"}, {Name: "Someone Else"}},
		Identifiers: []*models.Identifier{
			{Type: models.IdentifierTypeISBN10, Value: "0441013597"},
		},
	}
	file := &models.File{Path: "/books/dune.EPUB", Extension: "EPUB"}

	v := ValuesFor(item, file)
	assert.Equal(t, TemplateValues{
		Author: "Frank Herbert",
		Title:  "Dune",
		Year:   "1965",
		ISBN13: "9780441013593",
		Ext:    "epub",
	}, v)
}

func TestValuesFor_EmbeddedISBNOutranksProvider(t *testing.T) {
	t.Parallel()
	item := &models.Item{
		Title: "Dune",
		Identifiers: []*models.Identifier{
			{Type: models.IdentifierTypeISBN13, Value: "9780441172719", Source: models.IdentifierSourceProvider, Confidence: 0.98},
			{Type: models.IdentifierTypeISBN10, Value: "0441013597", Source: models.IdentifierSourceEmbedded, Confidence: 0.8},
		},
	}
	v := ValuesFor(item, &models.File{Path: "/books/dune.epub", Extension: "epub"})
	assert.Equal(t, "9780441013593", v.ISBN13)
}
