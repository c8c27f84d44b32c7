package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/backoff"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/sourcegraph/conc/pool"
	"github.com/uptrace/bun"
)

const retryJitter = 0.2

type EnrichOptions struct {
	// Query replaces the lookup derived from the item when it isn't empty.
	Query Query
	// Overwrite replaces fields that already have a value. By default only
	// empty fields are filled.
	Overwrite bool
}

type EnrichResult struct {
	ItemID            int              `json:"item_id"`
	Query             Query            `json:"query"`
	Merged            *MergedCandidate `json:"merged"`
	AppliedSource     string           `json:"applied_source,omitempty"`
	AppliedConfidence float64          `json:"applied_confidence,omitempty"`
	UpdatedFields     []string         `json:"updated_fields"`
}

type EnrichAllOptions struct {
	ItemIDs []int
	// OnlyMissing limits the run to items missing authors, a description or
	// an ISBN.
	OnlyMissing bool
	Overwrite   bool
	Progress    progress.Sink
}

type EnrichAllResult struct {
	Processed int  `json:"processed"`
	Enriched  int  `json:"enriched"`
	NoMatch   int  `json:"no_match"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

type Service struct {
	config    *config.Config
	items     *items.Service
	cache     *Cache
	providers []Provider
	weights   map[string]float64
}

// NewService builds the engine with the Open Library and Google Books
// providers, each with its own rate limiter.
func NewService(db *bun.DB, cfg *config.Config) *Service {
	client := &http.Client{Timeout: cfg.EnrichmentTimeout}
	policy := backoff.Policy{
		Base:           cfg.EnrichmentRetryBaseDelay,
		Max:            cfg.EnrichmentRetryMaxDelay,
		JitterFraction: retryJitter,
	}
	fetcher := func(interval time.Duration) *Fetcher {
		return NewFetcher(FetcherOptions{
			Client:     client,
			Limiter:    NewRateLimiter(interval),
			Policy:     policy,
			MaxRetries: cfg.EnrichmentMaxRetries,
		})
	}

	providers := []Provider{
		NewOpenLibrary(OpenLibraryOptions{
			BaseURL:   cfg.OpenLibraryURL,
			CoversURL: cfg.OpenLibraryCoversURL,
			Fetcher:   fetcher(cfg.OpenLibraryMinInterval),
		}),
		NewGoogleBooks(GoogleBooksOptions{
			BaseURL: cfg.GoogleBooksURL,
			APIKey:  cfg.GoogleBooksAPIKey,
			Fetcher: fetcher(cfg.GoogleBooksMinInterval),
		}),
	}
	weights := map[string]float64{
		ProviderOpenLibrary: cfg.OpenLibraryWeight,
		ProviderGoogleBooks: cfg.GoogleBooksWeight,
	}

	return NewServiceWithProviders(db, cfg, providers, weights)
}

// NewServiceWithProviders builds the engine around an explicit provider set.
// Providers missing from weights get a weight of 1.
func NewServiceWithProviders(db *bun.DB, cfg *config.Config, providers []Provider, weights map[string]float64) *Service {
	return &Service{
		config:    cfg,
		items:     items.NewService(db),
		cache:     NewCache(db, cfg.EnrichmentCacheTTL),
		providers: providers,
		weights:   weights,
	}
}

// Lookup queries every provider at once and fuses what they return. Provider
// failures are logged and count as no result. It returns nil when no
// provider had a candidate.
func (svc *Service) Lookup(ctx context.Context, q Query, itemID *int) (*MergedCandidate, []*Candidate) {
	if svc.config.EnrichmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.config.EnrichmentTimeout)
		defer cancel()
	}

	// Results are slotted by provider so the fusion input order is stable.
	results := make([][]*Candidate, len(svc.providers))
	p := pool.New().WithContext(ctx)
	for i, prov := range svc.providers {
		i, prov := i, prov
		p.Go(func(ctx context.Context) error {
			results[i] = svc.queryProvider(ctx, prov, q, itemID)
			return nil
		})
	}
	_ = p.Wait()

	var candidates []*Candidate
	for _, r := range results {
		candidates = append(candidates, r...)
	}
	return Fuse(candidates, svc.weights), candidates
}

// queryProvider looks the ISBN up first and falls back to a text search when
// the provider doesn't know it.
func (svc *Service) queryProvider(ctx context.Context, p Provider, q Query, itemID *int) []*Candidate {
	log := logger.FromContext(ctx).Data(logger.Data{"provider": p.Name()})

	if isbn := lookupISBN(q.ISBN); isbn != "" {
		candidates, err := svc.lookup(ctx, p, models.QueryTypeISBN, isbn, itemID,
			func(ctx context.Context) ([]byte, error) {
				return p.FetchByISBN(ctx, isbn)
			},
			func(c *Candidate) bool {
				c.Confidence = ISBNConfidence
				if c.CoverURL == "" {
					c.CoverURL = p.CoverURL(isbn)
				}
				return true
			})
		if err != nil {
			log.Warn("isbn lookup failed", logger.Data{"isbn": isbn, "error": err.Error()})
		}
		if len(candidates) > 0 {
			return candidates
		}
	}

	if strings.TrimSpace(q.Title) == "" {
		return nil
	}
	candidates, err := svc.lookup(ctx, p, models.QueryTypeText, q.textKey(), itemID,
		func(ctx context.Context) ([]byte, error) {
			return p.Search(ctx, q)
		},
		func(c *Candidate) bool {
			confidence, ok := ScoreTextMatch(q, c)
			c.Confidence = confidence
			return ok
		})
	if err != nil {
		log.Warn("text search failed", logger.Data{"title": q.Title, "author": q.Author, "error": err.Error()})
	}
	return candidates
}

// lookup serves the query from the cache, or fetches, normalizes and scores
// it and caches the outcome. Failed requests are not cached.
func (svc *Service) lookup(
	ctx context.Context,
	p Provider,
	queryType, key string,
	itemID *int,
	fetch func(ctx context.Context) ([]byte, error),
	accept func(c *Candidate) bool,
) ([]*Candidate, error) {
	cached, ok, err := svc.cache.Get(ctx, p.Name(), queryType, key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if ok {
		return cached, nil
	}

	raw, err := fetch(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	normalized, err := p.Normalize(raw)
	if err != nil {
		return nil, errors.Wrap(err, "malformed provider response")
	}

	candidates := make([]*Candidate, 0, len(normalized))
	for _, c := range normalized {
		c.Source = p.Name()
		if accept(c) {
			candidates = append(candidates, c)
		}
	}

	if err := svc.cache.Put(ctx, p.Name(), queryType, key, itemID, candidates); err != nil {
		return nil, errors.WithStack(err)
	}
	return candidates, nil
}

func lookupISBN(value string) string {
	if value == "" {
		return ""
	}
	if isbn := identifiers.ToISBN13(value); isbn != "" {
		return isbn
	}
	return identifiers.NormalizeISBN(value)
}

// Enrich looks the item up and applies the fused result to it. When no
// provider returns anything, the item is left as is and Merged is nil.
func (svc *Service) Enrich(ctx context.Context, itemID int, opts EnrichOptions) (*EnrichResult, error) {
	item, err := svc.items.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log := logger.FromContext(ctx).Data(logger.Data{"item_id": item.ID})
	ctx = log.WithContext(ctx)

	q := opts.Query
	if q.IsEmpty() {
		q = QueryForItem(item)
	}
	result := &EnrichResult{ItemID: item.ID, Query: q, UpdatedFields: []string{}}

	merged, candidates := svc.Lookup(ctx, q, &item.ID)
	if merged == nil {
		log.Info("no provider returned a result", logger.Data{"isbn": q.ISBN, "title": q.Title})
		return result, nil
	}
	result.Merged = merged

	fields, err := svc.apply(ctx, item, merged, opts.Overwrite)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result.AppliedSource = merged.Source
	result.AppliedConfidence = merged.Confidence
	result.UpdatedFields = fields

	log.Info("enriched item", logger.Data{
		"source":     merged.Source,
		"confidence": merged.Confidence,
		"candidates": len(candidates),
		"fields":     fields,
	})
	return result, nil
}

// ManualConfidence is recorded for a candidate picked by hand that carries no
// confidence of its own.
const ManualConfidence = 1.0

type CandidatesResult struct {
	ItemID     int              `json:"item_id"`
	Query      Query            `json:"query"`
	Merged     *MergedCandidate `json:"merged"`
	Candidates []*Candidate     `json:"candidates"`
}

// Candidates looks the item up like Enrich does but applies nothing, so the
// right match can be picked by hand. Candidates are ordered by confidence.
func (svc *Service) Candidates(ctx context.Context, itemID int, q Query) (*CandidatesResult, error) {
	item, err := svc.items.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if q.IsEmpty() {
		q = QueryForItem(item)
	}

	merged, candidates := svc.Lookup(ctx, q, &item.ID)
	if candidates == nil {
		candidates = []*Candidate{}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return &CandidatesResult{
		ItemID:     item.ID,
		Query:      q,
		Merged:     merged,
		Candidates: candidates,
	}, nil
}

// ApplyCandidate applies one candidate, usually one picked from Candidates,
// to the item. Existing fields are only replaced when overwrite is set.
func (svc *Service) ApplyCandidate(ctx context.Context, itemID int, c *Candidate, overwrite bool) (*EnrichResult, error) {
	item, err := svc.items.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	picked := *c
	if picked.Confidence <= 0 {
		picked.Confidence = ManualConfidence
	}
	merged := Fuse([]*Candidate{&picked}, nil)

	fields, err := svc.apply(ctx, item, merged, overwrite)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("applied candidate", logger.Data{
		"item_id": item.ID,
		"source":  picked.Source,
		"fields":  fields,
	})
	return &EnrichResult{
		ItemID:            item.ID,
		Merged:            merged,
		AppliedSource:     merged.Source,
		AppliedConfidence: merged.Confidence,
		UpdatedFields:     fields,
	}, nil
}

// QueryForItem looks an item up by its best ISBN, plus its cleaned title and
// first usable author for the text fallback. ISBNs read from the item's files
// are preferred over ones a provider reported, so repeat lookups hit the
// same cache entry.
func QueryForItem(item *models.Item) Query {
	q := Query{Title: CleanSearchTitle(item.Title)}
	if q.Title == "" {
		q.Title = strings.TrimSpace(item.Title)
	}
	for _, a := range item.Authors {
		if name := CleanSearchAuthor(a.Name); name != "" {
			q.Author = name
			break
		}
	}
	if id := item.PreferredIdentifier(models.IdentifierTypeISBN13, models.IdentifierTypeISBN10); id != nil {
		q.ISBN = identifiers.ToISBN13(id.Value)
	}
	return q
}

// apply writes the merged fields to the item and returns the ones that
// changed. Identifiers are always added.
func (svc *Service) apply(ctx context.Context, item *models.Item, m *MergedCandidate, overwrite bool) ([]string, error) {
	opts := items.UpdateItemOptions{Columns: []string{}}
	updated := []string{}

	setString := func(field string, dst **string, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if *dst != nil && **dst != "" && (!overwrite || **dst == value) {
			return
		}
		*dst = &value
		opts.Columns = append(opts.Columns, field)
		updated = append(updated, field)
	}

	if overwrite && m.Title != "" && m.Title != item.Title {
		item.Title = m.Title
		opts.Columns = append(opts.Columns, "title")
		updated = append(updated, "title")
	}
	setString("subtitle", &item.Subtitle, m.Subtitle)
	setString("description", &item.Description, m.Description)
	setString("language", &item.Language, m.Language)
	setString("cover_url", &item.CoverURL, m.CoverURL)
	setString("source_url", &item.SourceURL, m.SourceURL)
	if m.PublishedYear != nil && (item.PublishedYear == nil || (overwrite && *item.PublishedYear != *m.PublishedYear)) {
		year := *m.PublishedYear
		item.PublishedYear = &year
		opts.Columns = append(opts.Columns, "published_year")
		updated = append(updated, "published_year")
	}
	replaceAuthors := len(m.Authors) > 0 &&
		(len(item.Authors) == 0 || (overwrite && !sameNames(item.AuthorNames(), m.Authors)))

	if err := svc.items.UpdateItem(ctx, item, opts); err != nil {
		return nil, errors.WithStack(err)
	}
	if replaceAuthors {
		if err := svc.items.ReplaceAuthors(ctx, item.ID, m.Authors); err != nil {
			return nil, errors.WithStack(err)
		}
		updated = append(updated, "authors")
	}

	ids := make([]mediafile.ParsedIdentifier, 0, len(m.Identifiers))
	for _, id := range m.Identifiers {
		confidence := id.Confidence
		if confidence == 0 {
			confidence = m.Confidence
		}
		ids = append(ids, mediafile.ParsedIdentifier{
			Type:       id.Type,
			Value:      id.Value,
			Source:     models.IdentifierSourceProvider,
			Confidence: confidence,
		})
	}
	if err := svc.items.UpsertIdentifiers(ctx, item.ID, ids); err != nil {
		return nil, errors.WithStack(err)
	}

	sources := make([]*models.FieldSource, 0, len(updated))
	for _, field := range updated {
		source, ok := m.FieldSources[field]
		if !ok {
			source = m.Source
		}
		sources = append(sources, &models.FieldSource{Field: field, Source: source, Confidence: m.Confidence})
	}
	if err := svc.items.RecordFieldSources(ctx, item.ID, sources); err != nil {
		return nil, errors.WithStack(err)
	}

	return updated, nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

// EnrichAll enriches items one at a time. Cancelling ctx stops the run
// between items; the result then has Cancelled set and no error is
// returned. A failure on one item is logged and counted, and the run goes
// on.
func (svc *Service) EnrichAll(ctx context.Context, opts EnrichAllOptions) (*EnrichAllResult, error) {
	log := logger.FromContext(ctx)
	sink := progress.OrDiscard(opts.Progress)

	list, err := svc.items.ListItems(ctx, items.ListItemsOptions{
		IDs:             opts.ItemIDs,
		MissingMetadata: opts.OnlyMissing,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result := &EnrichAllResult{}
	total := len(list)
	sink.Progress(progress.Event{Total: total, Message: fmt.Sprintf("Enriching %d items", total), Status: progress.StatusPending})

	for i, item := range list {
		if ctx.Err() != nil {
			result.Cancelled = true
			log.Info("enrichment cancelled", logger.Data{"processed": result.Processed})
			return result, nil
		}

		status := progress.StatusProcessing
		message := item.Title
		res, err := svc.Enrich(ctx, item.ID, EnrichOptions{Overwrite: opts.Overwrite})
		switch {
		case err != nil:
			log.Err(err).Error("failed to enrich item", logger.Data{"item_id": item.ID})
			result.Failed++
			status = progress.StatusError
			message = fmt.Sprintf("%s: %s", item.Title, err.Error())
		case res.Merged == nil:
			result.NoMatch++
			message = item.Title + ": no match"
		default:
			result.Enriched++
			message = fmt.Sprintf("%s: %s (%.2f)", item.Title, res.AppliedSource, res.AppliedConfidence)
		}
		result.Processed++

		sink.Progress(progress.Event{Current: i + 1, Total: total, Message: message, Status: status})
	}

	sink.Progress(progress.Event{
		Current: total,
		Total:   total,
		Message: fmt.Sprintf("%d enriched, %d without a match, %d failed", result.Enriched, result.NoMatch, result.Failed),
		Status:  progress.StatusDone,
	})
	return result, nil
}
