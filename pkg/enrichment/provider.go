package enrichment

import (
	"context"
	"regexp"
	"strconv"
)

// Provider is a remote metadata source. Search and FetchByISBN return the
// raw response body, which Normalize turns into candidates. Candidates that
// can't be made sense of are dropped by Normalize; an error means the whole
// payload was unusable.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]byte, error)
	FetchByISBN(ctx context.Context, isbn string) ([]byte, error)
	Normalize(raw []byte) ([]*Candidate, error)
	// CoverURL returns a cover for the ISBN when the provider can serve one
	// by ISBN alone, or "".
	CoverURL(isbn string) string
}

const (
	ProviderOpenLibrary = "openlibrary"
	ProviderGoogleBooks = "googlebooks"
)

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// parseYear returns the first four digit year in a free form date.
func parseYear(s string) *int {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year == 0 {
		return nil
	}
	return &year
}
