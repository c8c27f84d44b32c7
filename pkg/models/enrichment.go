package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	QueryTypeISBN = "isbn"
	QueryTypeText = "text"
)

type EnrichmentSource struct {
	bun.BaseModel `bun:"table:enrichment_sources,alias:es"`

	ID              int       `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Name            string    `bun:",nullzero" json:"name"`
	RateLimitPerMin int       `json:"rate_limit_per_min"`
}

// EnrichmentResult is one cached provider response.
type EnrichmentResult struct {
	bun.BaseModel `bun:"table:enrichment_results,alias:er"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ItemID       *int      `json:"item_id"`
	SourceID     int       `bun:",nullzero" json:"source_id"`
	QueryType    string    `bun:",nullzero" json:"query_type"`
	Query        string    `bun:",nullzero" json:"query"`
	ResponseJSON string    `bun:"response_json" json:"response_json"`
	Confidence   *float64  `json:"confidence"`
}
