package pdf

import (
	"strings"
	"testing"

	"github.com/shishobooks/folio/internal/testgen"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		limit    int
		expected string
	}{
		{
			name:     "simple Tj",
			content:  "BT /F1 12 Tf 72 720 Td (Hello World) Tj ET",
			limit:    100,
			expected: "Hello World",
		},
		{
			name:     "TJ array with kerning",
			content:  "BT [(ISBN ) -20 (978-0-306-40615-7)] TJ ET",
			limit:    100,
			expected: "ISBN 978-0-306-40615-7",
		},
		{
			name:     "line moves become newlines",
			content:  "BT (First) Tj 0 -14 Td (Second) Tj T* (Third) Tj ET",
			limit:    100,
			expected: "First\nSecond\nThird",
		},
		{
			name:     "escapes and nesting",
			content:  `BT (a \(b\) c (d) \101) Tj ET`,
			limit:    100,
			expected: "a (b) c (d) A",
		},
		{
			name:     "hex strings",
			content:  "BT <48656C6C6F> Tj ET",
			limit:    100,
			expected: "Hello",
		},
		{
			name:     "dictionaries and comments ignored",
			content:  "/Span << /MCID 0 >> BDC % a comment (not text)\nBT (Body) Tj ET EMC",
			limit:    100,
			expected: "Body",
		},
		{
			name:     "limit applies",
			content:  "BT (0123456789) Tj ET",
			limit:    4,
			expected: "0123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExtractText([]byte(tt.content), tt.limit))
		})
	}
}

func TestParse_GeneratedPDF(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "paper.pdf", testgen.PDFOptions{
		Title:        "Structure and Interpretation",
		Author:       "Harold Abelson; Gerald Jay Sussman",
		Subject:      "Programming",
		Keywords:     "lisp, ISBN 0262510871",
		CreationDate: "D:19960725120000Z",
		Pages: []string{
			"Copyright page\nISBN 978-0-306-40615-7",
			"Chapter 1",
		},
	})

	m, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "Structure and Interpretation", m.Title)
	assert.Equal(t, []string{"Harold Abelson", "Gerald Jay Sussman"}, m.AuthorNames())
	assert.Equal(t, "Programming", m.Description)
	assert.Equal(t, []string{"lisp", "ISBN 0262510871"}, m.Keywords)
	require.NotNil(t, m.PublishedYear)
	assert.Equal(t, 1996, *m.PublishedYear)
	require.NotNil(t, m.PageCount)
	assert.Equal(t, 2, *m.PageCount)
	assert.Equal(t, mediafile.DataSourcePDFMetadata, m.DataSource)
	assert.True(t, strings.Contains(m.Text, "ISBN 978-0-306-40615-7"), m.Text)
	assert.Contains(t, m.Text, "Chapter 1")
}

func TestParse_NotAPDF(t *testing.T) {
	t.Parallel()
	path := testgen.WriteFile(t, t.TempDir(), "fake.pdf", []byte("plain text"))
	_, err := Parse(path)
	assert.Error(t, err)
}

func TestParseYear(t *testing.T) {
	t.Parallel()
	require.NotNil(t, parseYear("D:20190314120000Z"))
	assert.Equal(t, 2019, *parseYear("D:20190314120000Z"))
	assert.Nil(t, parseYear(""))
	assert.Nil(t, parseYear("D:19"))
}
