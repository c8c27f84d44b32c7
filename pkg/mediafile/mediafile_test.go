package mediafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsedMetadata_AuthorNames(t *testing.T) {
	t.Parallel()
	m := ParsedMetadata{
		Authors: []ParsedAuthor{{Name: " Octavia E. Butler "}, {Name: ""}, {Name: "N. K. Jemisin", Role: "edt"}},
	}
	assert.Equal(t, []string{"Octavia E. Butler", "N. K. Jemisin"}, m.AuthorNames())
}

func TestParsedMetadata_String(t *testing.T) {
	t.Parallel()
	year := 1979
	m := ParsedMetadata{
		Title:         "Kindred",
		Authors:       []ParsedAuthor{{Name: "Octavia E. Butler", Role: "aut"}},
		PublishedYear: &year,
		Identifiers:   []ParsedIdentifier{{Type: "isbn_13", Value: "9780807083697", Source: "embedded", Confidence: 0.8}},
		DataSource:    DataSourceEPUBMetadata,
	}
	s := m.String()
	assert.Contains(t, s, "Kindred")
	assert.Contains(t, s, "Octavia E. Butler (aut)")
	assert.Contains(t, s, "1979")
	assert.Contains(t, s, "isbn_13:9780807083697 (embedded 0.80)")
}

func TestParsedMetadata_CoverExtension(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ".jpg", (&ParsedMetadata{CoverMimeType: "image/jpeg"}).CoverExtension())
	assert.Equal(t, ".png", (&ParsedMetadata{CoverMimeType: "image/png"}).CoverExtension())
	assert.Equal(t, "", (&ParsedMetadata{}).CoverExtension())
}
