package enrichment

import (
	"strings"

	"github.com/shishobooks/folio/pkg/identifiers"
)

// Identifier is an identifier reported by a provider. Confidence is set on
// fused identifiers to that of the candidate that reported them.
type Identifier struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Candidate is one provider result normalized into a common shape.
type Candidate struct {
	Source        string       `json:"source"`
	Title         string       `json:"title"`
	Subtitle      string       `json:"subtitle,omitempty"`
	Authors       []string     `json:"authors,omitempty"`
	Description   string       `json:"description,omitempty"`
	Language      string       `json:"language,omitempty"`
	Publisher     string       `json:"publisher,omitempty"`
	PublishedYear *int         `json:"published_year,omitempty"`
	Identifiers   []Identifier `json:"identifiers,omitempty"`
	CoverURL      string       `json:"cover_url,omitempty"`
	SourceURL     string       `json:"source_url,omitempty"`
	RatingsCount  int          `json:"ratings_count,omitempty"`
	AverageRating float64      `json:"average_rating,omitempty"`
	Confidence    float64      `json:"confidence"`
}

// ISBN13 returns the candidate's first ISBN in its 13 digit form.
func (c *Candidate) ISBN13() string {
	for _, id := range c.Identifiers {
		if id.Type != string(identifiers.TypeISBN13) && id.Type != string(identifiers.TypeISBN10) {
			continue
		}
		if isbn := identifiers.ToISBN13(id.Value); isbn != "" {
			return isbn
		}
	}
	return ""
}

// Query is what an item is looked up by. ISBN lookups are tried first when
// set; the title and author drive the free text search.
type Query struct {
	ISBN   string `json:"isbn,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

func (q Query) IsEmpty() bool {
	return q.ISBN == "" && q.Title == ""
}

// textKey is the cache key for a text search.
func (q Query) textKey() string {
	return normalizeText(q.Title) + "|" + normalizeText(q.Author)
}

// ParseQuery splits a free text query of the form "Title by Author" or
// "Title - Author". Anything else is taken as a bare title. A query that is
// a valid ISBN becomes an ISBN lookup.
func ParseQuery(s string) Query {
	s = strings.Join(strings.Fields(s), " ")
	if isbn := identifiers.ToISBN13(s); isbn != "" {
		return Query{ISBN: isbn}
	}

	lower := strings.ToLower(s)
	for _, sep := range []string{" by ", " - "} {
		if i := strings.LastIndex(lower, sep); i > 0 {
			title := strings.TrimSpace(s[:i])
			author := strings.TrimSpace(s[i+len(sep):])
			if title != "" && author != "" {
				return Query{Title: title, Author: author}
			}
		}
	}
	return Query{Title: s}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// providerIdentifiers keeps the checksum-valid ISBNs out of values. The
// type is detected from the value itself.
func providerIdentifiers(values ...string) []Identifier {
	var ids []Identifier
	seen := map[string]struct{}{}
	for _, v := range values {
		isbn := identifiers.NormalizeISBN(v)
		var typ identifiers.Type
		switch {
		case len(isbn) == 13 && identifiers.ValidateISBN13(isbn):
			typ = identifiers.TypeISBN13
		case len(isbn) == 10 && identifiers.ValidateISBN10(isbn):
			typ = identifiers.TypeISBN10
		default:
			continue
		}
		if _, ok := seen[isbn]; ok {
			continue
		}
		seen[isbn] = struct{}{}
		ids = append(ids, Identifier{Type: string(typ), Value: isbn})
	}
	return ids
}
