package enrichment

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	duneISBN = "9780441013593"

	openLibraryDune = `{"ISBN:9780441013593": {
		"url": "https://openlibrary.org/books/OL1M/Dune",
		"title": "Dune",
		"authors": [{"name": "Frank Herbert"}],
		"publishers": [{"name": "Ace"}],
		"publish_date": "August 2005",
		"identifiers": {"isbn_13": ["9780441013593"], "isbn_10": ["0441013597"]},
		"cover": {
			"small": "https://covers.openlibrary.org/b/id/1-S.jpg",
			"medium": "https://covers.openlibrary.org/b/id/1-M.jpg",
			"large": "https://covers.openlibrary.org/b/id/1-L.jpg"
		}
	}}`

	googleBooksDune = `{"totalItems": 1, "items": [{
		"id": "abc",
		"volumeInfo": {
			"title": "Dune",
			"authors": ["Frank Herbert"],
			"publishedDate": "1990-09-01",
			"description": "<p>Set on the desert planet Arrakis, Dune is the story of Paul Atreides.</p>",
			"language": "en",
			"industryIdentifiers": [
				{"type": "ISBN_13", "identifier": "9780441172719"},
				{"type": "ISBN_10", "identifier": "0441172717"},
				{"type": "OTHER", "identifier": "OCLC:123"}
			],
			"imageLinks": {"thumbnail": "http://books.google.com/books/content?id=abc&printsec=frontcover&img=1&zoom=1"},
			"canonicalVolumeLink": "https://books.google.com/books/about/Dune.html?id=abc"
		}
	}]}`
)

type fakeProvider struct {
	server   *httptest.Server
	requests int32
	// responses are served in order; the last one repeats.
	responses []fakeResponse
	search    fakeResponse
}

type fakeResponse struct {
	status int
	body   string
	header map[string]string
}

func newFakeProvider(t *testing.T, search fakeResponse, responses ...fakeResponse) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{responses: responses, search: search}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&fp.requests, 1)
		resp := fp.search
		if r.URL.Path == "/api/books" || strings.HasPrefix(r.URL.Query().Get("q"), "isbn:") {
			i := int(n) - 1
			if i >= len(fp.responses) {
				i = len(fp.responses) - 1
			}
			resp = fp.responses[i]
		}
		for k, v := range resp.header {
			w.Header().Set(k, v)
		}
		status := resp.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) count() int {
	return int(atomic.LoadInt32(&fp.requests))
}

type testContext struct {
	ctx   context.Context
	db    *bun.DB
	cfg   *config.Config
	items *items.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &testContext{
		ctx:   context.Background(),
		db:    db,
		cfg:   config.NewForTest(),
		items: items.NewService(db),
	}
}

func (tc *testContext) service(ol, gb *fakeProvider) *Service {
	tc.cfg.OpenLibraryURL = ol.server.URL
	tc.cfg.OpenLibraryCoversURL = ol.server.URL
	tc.cfg.GoogleBooksURL = gb.server.URL
	return NewService(tc.db, tc.cfg)
}

func (tc *testContext) createItem(t *testing.T, title, isbn string, authors ...string) *models.Item {
	t.Helper()
	item := &models.Item{Title: title}
	for _, name := range authors {
		item.Authors = append(item.Authors, &models.Author{Name: name})
	}
	if isbn != "" {
		item.Identifiers = []*models.Identifier{{
			Type:       models.IdentifierTypeISBN13,
			Value:      isbn,
			Source:     models.IdentifierSourceEmbedded,
			Confidence: 0.8,
		}}
	}
	require.NoError(t, tc.items.CreateItem(tc.ctx, item))
	return item
}

func (tc *testContext) retrieve(t *testing.T, id int) *models.Item {
	t.Helper()
	item, err := tc.items.RetrieveItem(tc.ctx, items.RetrieveItemOptions{ID: &id})
	require.NoError(t, err)
	return item
}

var (
	emptySearchOL = fakeResponse{body: `{"docs": []}`}
	emptySearchGB = fakeResponse{body: `{"totalItems": 0}`}
)

func TestEnrich_FusesProvidersByISBN(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Merged)

	assert.Equal(t, duneISBN, result.Query.ISBN)
	assert.Equal(t, ProviderOpenLibrary, result.AppliedSource)
	assert.InDelta(t, ISBNConfidence, result.AppliedConfidence, 0.0001)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/1-L.jpg", result.Merged.CoverURL)
	assert.Equal(t, ProviderGoogleBooks, result.Merged.FieldSources["description"])
	assert.Len(t, result.Merged.Identifiers, 4)

	updated := tc.retrieve(t, item.ID)
	assert.Equal(t, []string{"Frank Herbert"}, updated.AuthorNames())
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Set on the desert planet Arrakis, Dune is the story of Paul Atreides.", *updated.Description)
	require.NotNil(t, updated.PublishedYear)
	assert.Equal(t, 2005, *updated.PublishedYear)
	require.NotNil(t, updated.SourceURL)
	assert.Equal(t, "https://openlibrary.org/books/OL1M/Dune", *updated.SourceURL)
	assert.Len(t, updated.Identifiers, 4)

	fields := map[string]string{}
	for _, fs := range updated.FieldSources {
		fields[fs.Field] = fs.Source
	}
	assert.Equal(t, ProviderGoogleBooks, fields["description"])
	assert.Equal(t, ProviderOpenLibrary, fields["authors"])
}

func TestEnrich_CachesResponses(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	_, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	second, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, ol.count())
	assert.Equal(t, 1, gb.count())
	require.NotNil(t, second.Merged)
	assert.Equal(t, "Dune", second.Merged.Title)

	// A fresh service shares the cache through the database.
	third := tc.service(ol, gb)
	merged, _ := third.Lookup(tc.ctx, Query{ISBN: duneISBN}, nil)
	require.NotNil(t, merged)
	assert.Equal(t, 1, ol.count())
	assert.Equal(t, 1, gb.count())
}

func TestEnrich_ExpiredCacheIsRefetched(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)

	_, _ = svc.Lookup(tc.ctx, Query{ISBN: duneISBN}, nil)

	_, err := tc.db.NewUpdate().
		Model((*models.EnrichmentResult)(nil)).
		Set("created_at = ?", "2000-01-01 00:00:00+00:00").
		Where("1 = 1").
		Exec(tc.ctx)
	require.NoError(t, err)

	_, _ = svc.Lookup(tc.ctx, Query{ISBN: duneISBN}, nil)
	assert.Equal(t, 2, ol.count())
	assert.Equal(t, 2, gb.count())
}

func TestEnrich_RetriesThrottledRequests(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL,
		fakeResponse{status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "0"}},
		fakeResponse{status: http.StatusServiceUnavailable},
		fakeResponse{body: openLibraryDune},
	)
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)

	merged, _ := svc.Lookup(tc.ctx, Query{ISBN: duneISBN}, nil)
	require.NotNil(t, merged)
	assert.Equal(t, ProviderOpenLibrary, merged.Source)
	assert.Equal(t, 3, ol.count())
}

func TestEnrich_ProviderFailureDoesNotBlockOthers(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, fakeResponse{status: http.StatusNotFound}, fakeResponse{status: http.StatusNotFound})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Merged)
	assert.Equal(t, ProviderGoogleBooks, result.AppliedSource)

	// 404s aren't retried, and the ISBN miss falls back to a text search.
	assert.Equal(t, 2, ol.count())

	// Failures aren't cached.
	_, err = svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, ol.count())
	assert.Equal(t, 1, gb.count())
}

func TestEnrich_RepeatLookupKeepsEmbeddedISBN(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, fakeResponse{status: http.StatusNotFound}, fakeResponse{status: http.StatusNotFound})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	first, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	require.NotNil(t, first.Merged)

	updated := tc.retrieve(t, item.ID)
	byValue := map[string]*models.Identifier{}
	for _, id := range updated.Identifiers {
		byValue[id.Value] = id
	}
	require.Contains(t, byValue, "9780441172719")
	assert.Equal(t, models.IdentifierSourceProvider, byValue["9780441172719"].Source)
	assert.InDelta(t, first.Merged.Confidence, byValue["9780441172719"].Confidence, 0.0001)
	require.Contains(t, byValue, duneISBN)
	assert.Equal(t, models.IdentifierSourceEmbedded, byValue[duneISBN].Source)
	assert.Equal(t, duneISBN, updated.Identifier(models.IdentifierTypeISBN13).Value)

	second, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, duneISBN, second.Query.ISBN)
	assert.Equal(t, 1, gb.count())
}

func TestEnrich_ExhaustedRetriesCountAsNoResult(t *testing.T) {
	tc := newTestContext(t)
	tc.cfg.EnrichmentMaxRetries = 2
	ol := newFakeProvider(t, fakeResponse{status: http.StatusInternalServerError}, fakeResponse{status: http.StatusInternalServerError})
	gb := newFakeProvider(t, fakeResponse{status: http.StatusBadGateway}, fakeResponse{status: http.StatusBadGateway})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Merged)
	assert.Empty(t, result.UpdatedFields)

	// One ISBN lookup and one search, three attempts each.
	assert.Equal(t, 6, ol.count())
	assert.Equal(t, 6, gb.count())

	unchanged := tc.retrieve(t, item.ID)
	assert.Nil(t, unchanged.Description)
	assert.Empty(t, unchanged.Authors)
}

func TestEnrich_NoResultsAreCached(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: `{}`})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Obscure Pamphlet", duneISBN)

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Merged)
	assert.Equal(t, 2, ol.count())
	assert.Equal(t, 2, gb.count())

	_, err = svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, ol.count())
	assert.Equal(t, 2, gb.count())
}

func TestEnrich_TextSearchScoresAndDropsMismatches(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, fakeResponse{body: `{"docs": [
		{"key": "/works/OL1W", "title": "Unrelated Cookbook", "author_name": ["Someone Else"]},
		{"key": "/works/OL2W", "title": "The Hobbit", "author_name": ["J.R.R. Tolkien"], "first_publish_year": 1937,
		 "isbn": ["9780261103344", "1234567890"], "cover_i": 42, "ratings_average": 4.3, "ratings_count": 900}
	]}`})
	gb := newFakeProvider(t, emptySearchGB)
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "The Hobbit", "", "J.R.R. Tolkien")

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Merged)

	assert.Equal(t, "The Hobbit", result.Merged.Title)
	assert.InDelta(t, 0.99, result.AppliedConfidence, 0.0001)
	assert.Equal(t, ol.server.URL+"/works/OL2W", result.Merged.SourceURL)
	assert.Equal(t, ol.server.URL+"/b/id/42-M.jpg", result.Merged.CoverURL)
	assert.Equal(t, []Identifier{{
		Type:       models.IdentifierTypeISBN13,
		Value:      "9780261103344",
		Confidence: result.Merged.Confidence,
	}}, result.Merged.Identifiers)

	updated := tc.retrieve(t, item.ID)
	require.NotNil(t, updated.PublishedYear)
	assert.Equal(t, 1937, *updated.PublishedYear)
}

func TestEnrich_ExplicitQuery(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "dune_scan_01", "")

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{Query: Query{ISBN: "0441013597"}, Overwrite: true})
	require.NoError(t, err)
	require.NotNil(t, result.Merged)
	assert.Equal(t, "0441013597", result.Query.ISBN)
	assert.Contains(t, result.UpdatedFields, "title")

	updated := tc.retrieve(t, item.ID)
	assert.Equal(t, "Dune", updated.Title)
}

func TestEnrich_FillOnlyKeepsExistingValues(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN, "F. Herbert")
	desc := "My own notes."
	item.Description = &desc
	require.NoError(t, tc.items.UpdateItem(tc.ctx, item, items.UpdateItemOptions{Columns: []string{"description"}}))

	result, err := svc.Enrich(tc.ctx, item.ID, EnrichOptions{})
	require.NoError(t, err)
	assert.NotContains(t, result.UpdatedFields, "description")
	assert.NotContains(t, result.UpdatedFields, "authors")

	updated := tc.retrieve(t, item.ID)
	assert.Equal(t, "My own notes.", *updated.Description)
	assert.Equal(t, []string{"F. Herbert"}, updated.AuthorNames())
}

func TestEnrichAll(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)
	tc.createItem(t, "Dune", duneISBN)
	tc.createItem(t, "Nothing Matches This", "")

	var events []progress.Event
	result, err := svc.EnrichAll(tc.ctx, EnrichAllOptions{
		Progress: progress.SinkFunc(func(e progress.Event) {
			events = append(events, e)
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Enriched)
	assert.Equal(t, 1, result.NoMatch)
	assert.False(t, result.Cancelled)

	require.NotEmpty(t, events)
	assert.Equal(t, progress.StatusDone, events[len(events)-1].Status)
}

func TestEnrichAll_Cancellation(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)
	tc.createItem(t, "Dune", duneISBN)
	tc.createItem(t, "Dune Messiah", "")

	ctx, cancel := context.WithCancel(tc.ctx)
	defer cancel()
	result, err := svc.EnrichAll(ctx, EnrichAllOptions{
		Progress: progress.SinkFunc(func(e progress.Event) {
			if e.Status == progress.StatusProcessing {
				cancel()
			}
		}),
	})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, result.Processed)
}

func TestQueryForItem(t *testing.T) {
	t.Parallel()
	item := &models.Item{
		Title:   "Dune",
		Authors: []*models.Author{{Name: "Frank Herbert"}, {Name: "Someone Else"}},
		Identifiers: []*models.Identifier{
			{Type: models.IdentifierTypeISBN10, Value: "0441013597"},
		},
	}
	assert.Equal(t, Query{ISBN: duneISBN, Title: "Dune", Author: "Frank Herbert"}, QueryForItem(item))
}

func TestCandidates_ListsWithoutApplying(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	result, err := svc.Candidates(tc.ctx, item.ID, Query{})
	require.NoError(t, err)
	assert.Equal(t, item.ID, result.ItemID)
	assert.Equal(t, duneISBN, result.Query.ISBN)
	require.NotNil(t, result.Merged)
	require.Len(t, result.Candidates, 2)
	assert.GreaterOrEqual(t, result.Candidates[0].Confidence, result.Candidates[1].Confidence)

	unchanged := tc.retrieve(t, item.ID)
	assert.Empty(t, unchanged.Authors)
	assert.Nil(t, unchanged.Description)
	assert.Len(t, unchanged.Identifiers, 1)
}

func TestCandidates_NoMatches(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: `{}`})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: `{"totalItems": 0}`})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN)

	result, err := svc.Candidates(tc.ctx, item.ID, Query{})
	require.NoError(t, err)
	assert.NotNil(t, result.Candidates)
	assert.Empty(t, result.Candidates)
	assert.Nil(t, result.Merged)
}

func TestCandidates_UnknownItem(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)

	_, err := svc.Candidates(tc.ctx, 999, Query{})
	require.Error(t, err)
	assert.Equal(t, 0, ol.count())
}

func TestApplyCandidate_ReplacesFields(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "dune_(2)", duneISBN, "F. Herbert")

	year := 1965
	result, err := svc.ApplyCandidate(tc.ctx, item.ID, &Candidate{
		Source:        ProviderOpenLibrary,
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
		PublishedYear: &year,
		Identifiers:   []Identifier{{Type: models.IdentifierTypeISBN13, Value: "9780441172719"}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenLibrary, result.AppliedSource)
	assert.InDelta(t, ManualConfidence, result.AppliedConfidence, 0.0001)
	assert.ElementsMatch(t, []string{"title", "published_year", "authors"}, result.UpdatedFields)
	assert.Equal(t, 0, ol.count()+gb.count())

	updated := tc.retrieve(t, item.ID)
	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, []string{"Frank Herbert"}, updated.AuthorNames())
	require.NotNil(t, updated.PublishedYear)
	assert.Equal(t, 1965, *updated.PublishedYear)

	isbn := updated.Identifier(models.IdentifierTypeISBN13)
	require.NotNil(t, isbn)
	assert.Equal(t, duneISBN, isbn.Value)
	assert.Len(t, updated.Identifiers, 2)
}

func TestApplyCandidate_KeepExisting(t *testing.T) {
	tc := newTestContext(t)
	ol := newFakeProvider(t, emptySearchOL, fakeResponse{body: openLibraryDune})
	gb := newFakeProvider(t, emptySearchGB, fakeResponse{body: googleBooksDune})
	svc := tc.service(ol, gb)
	item := tc.createItem(t, "Dune", duneISBN, "F. Herbert")

	result, err := svc.ApplyCandidate(tc.ctx, item.ID, &Candidate{
		Source:   ProviderGoogleBooks,
		Title:    "Dune (Deluxe Edition)",
		Authors:  []string{"Frank Herbert"},
		Language: "en",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"language"}, result.UpdatedFields)

	updated := tc.retrieve(t, item.ID)
	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, []string{"F. Herbert"}, updated.AuthorNames())
}
