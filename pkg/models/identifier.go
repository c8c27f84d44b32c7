package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	IdentifierTypeISBN10 = "isbn_10"
	IdentifierTypeISBN13 = "isbn_13"
	IdentifierTypeASIN   = "asin"
	IdentifierTypeDOI    = "doi"
	IdentifierTypeOther  = "other"
)

const (
	IdentifierSourceEmbedded  = "embedded"
	IdentifierSourceHeuristic = "heuristic"
	IdentifierSourceProvider  = "provider"
)

type Identifier struct {
	bun.BaseModel `bun:"table:identifiers,alias:ident"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ItemID     int       `bun:",nullzero" json:"item_id"`
	Type       string    `bun:",nullzero" json:"type"`
	Value      string    `bun:",nullzero" json:"value"`
	Source     string    `bun:",nullzero" json:"source"`
	Confidence float64   `json:"confidence"`
}

// FromProvider reports whether the identifier came from a metadata provider
// rather than the item's files.
func (id *Identifier) FromProvider() bool {
	return id.Source == IdentifierSourceProvider
}
