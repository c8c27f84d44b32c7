package enrichment

import (
	"testing"

	"github.com/shishobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func TestFuse_WeightedWinner(t *testing.T) {
	t.Parallel()
	a := &Candidate{
		Source:      "a",
		Title:       "Title From A",
		Confidence:  0.6,
		Identifiers: []Identifier{{Type: models.IdentifierTypeISBN13, Value: "9780306406157"}},
	}
	b := &Candidate{
		Source:      "b",
		Title:       "Title From B",
		Confidence:  0.9,
		Identifiers: []Identifier{{Type: models.IdentifierTypeISBN10, Value: "0306406152"}},
	}

	merged := Fuse([]*Candidate{a, b}, map[string]float64{"a": 1.0, "b": 0.8})
	require.NotNil(t, merged)

	assert.Equal(t, "b", merged.Source)
	assert.Equal(t, "Title From B", merged.Title)
	assert.InDelta(t, 0.72, merged.WeightedConfidence, 0.0001)
	assert.ElementsMatch(t, []Identifier{
		{Type: models.IdentifierTypeISBN13, Value: "9780306406157", Confidence: 0.6},
		{Type: models.IdentifierTypeISBN10, Value: "0306406152", Confidence: 0.9},
	}, merged.Identifiers)
}

func TestFuse_BackfillsFromAlternates(t *testing.T) {
	t.Parallel()
	winner := &Candidate{
		Source:      "winner",
		Title:       "Dune",
		Confidence:  0.95,
		Description: "Short.",
		CoverURL:    "https://books.google.com/books/content?id=x&zoom=1",
	}
	second := &Candidate{
		Source:        "second",
		Title:         "Dune (Deluxe)",
		Authors:       []string{"Frank Herbert"},
		PublishedYear: intPtr(1965),
		Description:   "A much longer description of the novel.",
		SourceURL:     "https://example.com/second",
		CoverURL:      "https://covers.openlibrary.org/b/id/1-L.jpg",
		Confidence:    0.9,
	}
	third := &Candidate{
		Source:     "third",
		Title:      "Dune",
		Authors:    []string{"Someone Else"},
		Language:   "en",
		SourceURL:  "https://example.com/third",
		Confidence: 0.5,
	}

	merged := Fuse([]*Candidate{third, second, winner}, nil)
	require.NotNil(t, merged)

	assert.Equal(t, "winner", merged.Source)
	assert.Equal(t, "Dune", merged.Title)
	assert.Equal(t, []string{"Frank Herbert"}, merged.Authors)
	assert.Equal(t, 1965, *merged.PublishedYear)
	assert.Equal(t, "en", merged.Language)
	assert.Equal(t, "A much longer description of the novel.", merged.Description)
	assert.Equal(t, "https://example.com/second", merged.SourceURL)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/1-L.jpg", merged.CoverURL)

	assert.Equal(t, map[string]string{
		"title":          "winner",
		"authors":        "second",
		"published_year": "second",
		"description":    "second",
		"source_url":     "second",
		"cover_url":      "second",
		"language":       "third",
	}, merged.FieldSources)
}

func TestFuse_CoverTieGoesToHigherWeight(t *testing.T) {
	t.Parallel()
	low := &Candidate{Source: "low", Title: "X", Confidence: 0.5, CoverURL: "https://covers.example/b/id/2-M.jpg"}
	high := &Candidate{Source: "high", Title: "X", Confidence: 0.9, CoverURL: "https://covers.example/b/id/1-M.jpg"}

	merged := Fuse([]*Candidate{low, high}, nil)
	require.NotNil(t, merged)
	assert.Equal(t, "https://covers.example/b/id/1-M.jpg", merged.CoverURL)
}

func TestFuse_NoCandidates(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Fuse(nil, nil))
	assert.Nil(t, Fuse([]*Candidate{nil}, nil))
}

func TestFuse_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()
	a := &Candidate{Source: "a", Title: "A", Confidence: 0.9}
	b := &Candidate{Source: "b", Title: "B", Authors: []string{"Writer"}, Confidence: 0.5}

	merged := Fuse([]*Candidate{a, b}, nil)
	require.NotNil(t, merged)
	merged.Authors[0] = "Changed"

	assert.Empty(t, a.Authors)
	assert.Equal(t, "Writer", b.Authors[0])
}

func TestInferCoverWidth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url  string
		want int
	}{
		{"https://covers.openlibrary.org/b/isbn/9780441013593-S.jpg", 45},
		{"https://covers.openlibrary.org/b/id/1-M.jpg", 180},
		{"https://covers.openlibrary.org/b/id/1-L.jpg", 500},
		{"https://books.google.com/books/content?id=x&zoom=5", 80},
		{"https://books.google.com/books/content?id=x&zoom=1", 128},
		{"https://books.google.com/books/content?id=x&zoom=6", 1280},
		{"https://example.com/cover.jpg", 0},
		{"::not a url", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferCoverWidth(tt.url), tt.url)
	}
}
