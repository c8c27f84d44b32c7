package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/htmlutil"
)

type openLibraryAuthor struct {
	Name string `json:"name"`
}

type openLibraryEdition struct {
	URL         string                `json:"url"`
	Title       string                `json:"title"`
	Subtitle    string                `json:"subtitle"`
	Authors     []openLibraryAuthor   `json:"authors"`
	Publishers  []openLibraryAuthor   `json:"publishers"`
	PublishDate string                `json:"publish_date"`
	Identifiers map[string][]string   `json:"identifiers"`
	Cover       map[string]string     `json:"cover"`
	Notes       json.RawMessage       `json:"notes"`
	Excerpts    []openLibraryExcerpt  `json:"excerpts"`
	Languages   []openLibraryLanguage `json:"languages"`
}

type openLibraryExcerpt struct {
	Text string `json:"text"`
}

type openLibraryLanguage struct {
	Key string `json:"key"`
}

type openLibraryDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorName       []string `json:"author_name"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear *int     `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	CoverID          int      `json:"cover_i"`
	Language         []string `json:"language"`
	RatingsAverage   float64  `json:"ratings_average"`
	RatingsCount     int      `json:"ratings_count"`
	FirstSentence    []string `json:"first_sentence"`
}

type openLibrarySearchResponse struct {
	Docs *[]json.RawMessage `json:"docs"`
}

type OpenLibraryOptions struct {
	BaseURL   string
	CoversURL string
	Fetcher   *Fetcher
}

// OpenLibrary looks books up through the Open Library books and search APIs.
type OpenLibrary struct {
	baseURL   string
	coversURL string
	fetcher   *Fetcher
}

func NewOpenLibrary(opts OpenLibraryOptions) *OpenLibrary {
	return &OpenLibrary{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		coversURL: strings.TrimSuffix(opts.CoversURL, "/"),
		fetcher:   opts.Fetcher,
	}
}

func (ol *OpenLibrary) Name() string {
	return ProviderOpenLibrary
}

func (ol *OpenLibrary) FetchByISBN(ctx context.Context, isbn string) ([]byte, error) {
	params := url.Values{}
	params.Set("bibkeys", "ISBN:"+isbn)
	params.Set("format", "json")
	params.Set("jscmd", "data")
	body, err := ol.fetcher.Get(ctx, ol.baseURL+"/api/books?"+params.Encode())
	return body, errors.WithStack(err)
}

func (ol *OpenLibrary) Search(ctx context.Context, q Query) ([]byte, error) {
	params := url.Values{}
	params.Set("title", q.Title)
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	params.Set("limit", "10")
	body, err := ol.fetcher.Get(ctx, ol.baseURL+"/search.json?"+params.Encode())
	return body, errors.WithStack(err)
}

func (ol *OpenLibrary) CoverURL(isbn string) string {
	if isbn == "" {
		return ""
	}
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg", ol.coversURL, url.PathEscape(isbn))
}

// Normalize handles both response shapes: search results carry a "docs"
// list, books API results are keyed by bibkey.
func (ol *OpenLibrary) Normalize(raw []byte) ([]*Candidate, error) {
	search := openLibrarySearchResponse{}
	if err := json.Unmarshal(raw, &search); err != nil {
		return nil, errors.WithStack(err)
	}
	if search.Docs != nil {
		candidates := []*Candidate{}
		for _, rawDoc := range *search.Docs {
			doc := openLibraryDoc{}
			if err := json.Unmarshal(rawDoc, &doc); err != nil {
				continue
			}
			if c := ol.normalizeDoc(doc); c != nil {
				candidates = append(candidates, c)
			}
		}
		return candidates, nil
	}

	editions := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &editions); err != nil {
		return nil, errors.WithStack(err)
	}
	keys := make([]string, 0, len(editions))
	for key := range editions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	candidates := []*Candidate{}
	for _, key := range keys {
		edition := openLibraryEdition{}
		if err := json.Unmarshal(editions[key], &edition); err != nil {
			continue
		}
		if c := ol.normalizeEdition(edition); c != nil {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func (ol *OpenLibrary) normalizeEdition(e openLibraryEdition) *Candidate {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return nil
	}
	c := &Candidate{
		Source:        ProviderOpenLibrary,
		Title:         title,
		Subtitle:      strings.TrimSpace(e.Subtitle),
		PublishedYear: parseYear(e.PublishDate),
		SourceURL:     e.URL,
		Description:   openLibraryNotes(e.Notes),
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			c.Authors = append(c.Authors, name)
		}
	}
	if len(e.Publishers) > 0 {
		c.Publisher = strings.TrimSpace(e.Publishers[0].Name)
	}
	if c.Description == "" && len(e.Excerpts) > 0 {
		c.Description = strings.TrimSpace(e.Excerpts[0].Text)
	}
	if len(e.Languages) > 0 {
		c.Language = strings.TrimPrefix(e.Languages[0].Key, "/languages/")
	}
	var isbns []string
	isbns = append(isbns, e.Identifiers["isbn_13"]...)
	isbns = append(isbns, e.Identifiers["isbn_10"]...)
	c.Identifiers = providerIdentifiers(isbns...)
	for _, size := range []string{"large", "medium", "small"} {
		if u := e.Cover[size]; u != "" {
			c.CoverURL = u
			break
		}
	}
	return c
}

func (ol *OpenLibrary) normalizeDoc(d openLibraryDoc) *Candidate {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil
	}
	c := &Candidate{
		Source:        ProviderOpenLibrary,
		Title:         title,
		Subtitle:      strings.TrimSpace(d.Subtitle),
		Authors:       d.AuthorName,
		PublishedYear: d.FirstPublishYear,
		Identifiers:   providerIdentifiers(d.ISBN...),
		RatingsCount:  d.RatingsCount,
		AverageRating: d.RatingsAverage,
	}
	if len(d.Publisher) > 0 {
		c.Publisher = d.Publisher[0]
	}
	if len(d.Language) > 0 {
		c.Language = d.Language[0]
	}
	if len(d.FirstSentence) > 0 {
		c.Description = strings.TrimSpace(d.FirstSentence[0])
	}
	if d.Key != "" {
		c.SourceURL = ol.baseURL + d.Key
	}
	if d.CoverID > 0 {
		c.CoverURL = fmt.Sprintf("%s/b/id/%d-M.jpg", ol.coversURL, d.CoverID)
	}
	return c
}

// openLibraryNotes reads the notes field, which is either a string or a
// {"type", "value"} text object.
func openLibraryNotes(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return htmlutil.StripTags(s)
	}
	var text struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &text); err == nil {
		return htmlutil.StripTags(text.Value)
	}
	return ""
}
