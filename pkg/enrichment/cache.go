package enrichment

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

// Cache stores normalized provider results in enrichment_results, keyed by
// provider, query type and normalized query. Entries older than the TTL are
// ignored.
type Cache struct {
	db  *bun.DB
	ttl time.Duration

	mu        sync.Mutex
	sourceIDs map[string]int
}

func NewCache(db *bun.DB, ttl time.Duration) *Cache {
	return &Cache{
		db:        db,
		ttl:       ttl,
		sourceIDs: map[string]int{},
	}
}

// Get returns the cached candidates for the query, if a fresh entry exists.
// An empty slice with ok set means the provider had nothing for the query.
func (c *Cache) Get(ctx context.Context, source, queryType, query string) ([]*Candidate, bool, error) {
	sourceID, err := c.sourceID(ctx, source)
	if err != nil {
		return nil, false, err
	}

	result := &models.EnrichmentResult{}
	err = c.db.
		NewSelect().
		Model(result).
		Where("er.source_id = ?", sourceID).
		Where("er.query_type = ?", queryType).
		Where("er.query = ?", query).
		Order("er.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.WithStack(err)
	}
	if c.ttl > 0 && time.Since(result.CreatedAt) > c.ttl {
		return nil, false, nil
	}

	candidates := []*Candidate{}
	if err := json.Unmarshal([]byte(result.ResponseJSON), &candidates); err != nil {
		// A corrupt entry is a miss; the next Put replaces it.
		return nil, false, nil
	}
	return candidates, true, nil
}

// Put stores candidates for the query. The best candidate's confidence is
// kept alongside for inspection.
func (c *Cache) Put(ctx context.Context, source, queryType, query string, itemID *int, candidates []*Candidate) error {
	sourceID, err := c.sourceID(ctx, source)
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = []*Candidate{}
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return errors.WithStack(err)
	}

	result := &models.EnrichmentResult{
		CreatedAt:    time.Now(),
		ItemID:       itemID,
		SourceID:     sourceID,
		QueryType:    queryType,
		Query:        query,
		ResponseJSON: string(data),
	}
	for _, cand := range candidates {
		if result.Confidence == nil || cand.Confidence > *result.Confidence {
			confidence := cand.Confidence
			result.Confidence = &confidence
		}
	}

	_, err = c.db.
		NewInsert().
		Model(result).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// sourceID resolves a provider name to its enrichment_sources row, creating
// the row for providers that weren't seeded.
func (c *Cache) sourceID(ctx context.Context, name string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.sourceIDs[name]; ok {
		return id, nil
	}

	source := &models.EnrichmentSource{}
	err := c.db.
		NewSelect().
		Model(source).
		Where("es.name = ?", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		source = &models.EnrichmentSource{CreatedAt: time.Now(), Name: name}
		_, err = c.db.
			NewInsert().
			Model(source).
			Returning("*").
			Exec(ctx)
	}
	if err != nil {
		return 0, errors.WithStack(err)
	}

	c.sourceIDs[name] = source.ID
	return source.ID, nil
}
