package enrichment

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/htmlutil"
)

type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

type googleBooksVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		Language            string   `json:"language"`
		AverageRating       float64  `json:"averageRating"`
		RatingsCount        int      `json:"ratingsCount"`
		InfoLink            string   `json:"infoLink"`
		CanonicalVolumeLink string   `json:"canonicalVolumeLink"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks map[string]string `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// googleBooksImageSizes lists imageLinks keys from largest to smallest.
var googleBooksImageSizes = []string{"extraLarge", "large", "medium", "small", "thumbnail", "smallThumbnail"}

type GoogleBooksOptions struct {
	BaseURL string
	APIKey  string
	Fetcher *Fetcher
}

// GoogleBooks looks books up through the Google Books volumes API.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	fetcher *Fetcher
}

func NewGoogleBooks(opts GoogleBooksOptions) *GoogleBooks {
	return &GoogleBooks{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		fetcher: opts.Fetcher,
	}
}

func (gb *GoogleBooks) Name() string {
	return ProviderGoogleBooks
}

func (gb *GoogleBooks) FetchByISBN(ctx context.Context, isbn string) ([]byte, error) {
	return gb.volumes(ctx, "isbn:"+isbn)
}

func (gb *GoogleBooks) Search(ctx context.Context, q Query) ([]byte, error) {
	terms := []string{"intitle:" + q.Title}
	if q.Author != "" {
		terms = append(terms, "inauthor:"+q.Author)
	}
	return gb.volumes(ctx, strings.Join(terms, " "))
}

func (gb *GoogleBooks) volumes(ctx context.Context, q string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", "10")
	if gb.apiKey != "" {
		params.Set("key", gb.apiKey)
	}
	body, err := gb.fetcher.Get(ctx, gb.baseURL+"/volumes?"+params.Encode())
	return body, errors.WithStack(err)
}

// CoverURL returns "" since Google Books covers are only reachable through a
// volume.
func (gb *GoogleBooks) CoverURL(string) string {
	return ""
}

func (gb *GoogleBooks) Normalize(raw []byte) ([]*Candidate, error) {
	resp := googleBooksResponse{}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.WithStack(err)
	}

	candidates := []*Candidate{}
	for _, rawVolume := range resp.Items {
		volume := googleBooksVolume{}
		if err := json.Unmarshal(rawVolume, &volume); err != nil {
			continue
		}
		if c := normalizeVolume(volume); c != nil {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func normalizeVolume(v googleBooksVolume) *Candidate {
	info := v.VolumeInfo
	title := strings.TrimSpace(info.Title)
	if title == "" {
		return nil
	}

	c := &Candidate{
		Source:        ProviderGoogleBooks,
		Title:         title,
		Subtitle:      strings.TrimSpace(info.Subtitle),
		Authors:       info.Authors,
		Publisher:     strings.TrimSpace(info.Publisher),
		PublishedYear: parseYear(info.PublishedDate),
		Description:   htmlutil.StripTags(info.Description),
		Language:      info.Language,
		RatingsCount:  info.RatingsCount,
		AverageRating: info.AverageRating,
		SourceURL:     info.CanonicalVolumeLink,
	}
	if c.SourceURL == "" {
		c.SourceURL = info.InfoLink
	}

	var isbns []string
	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_13" || id.Type == "ISBN_10" {
			isbns = append(isbns, id.Identifier)
		}
	}
	c.Identifiers = providerIdentifiers(isbns...)

	for _, size := range googleBooksImageSizes {
		if u := info.ImageLinks[size]; u != "" {
			c.CoverURL = secureURL(u)
			break
		}
	}
	return c
}

// secureURL upgrades the plain http links Google Books hands out.
func secureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
