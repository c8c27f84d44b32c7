package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID            int            `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Title         string         `bun:",nullzero" json:"title"`
	Subtitle      *string        `json:"subtitle"`
	Description   *string        `json:"description"`
	Language      *string        `json:"language"`
	PublishedYear *int           `json:"published_year"`
	Series        *string        `json:"series"`
	SeriesIndex   *float64       `json:"series_index"`
	CoverURL      *string        `bun:"cover_url" json:"cover_url"`
	SourceURL     *string        `bun:"source_url" json:"source_url"`
	Authors       []*Author      `bun:"rel:has-many,join:id=item_id" json:"authors,omitempty"`
	Files         []*File        `bun:"rel:has-many,join:id=item_id" json:"files,omitempty"`
	Identifiers   []*Identifier  `bun:"rel:has-many,join:id=item_id" json:"identifiers,omitempty"`
	FieldSources  []*FieldSource `bun:"rel:has-many,join:id=item_id" json:"field_sources,omitempty"`
}

// AuthorNames returns the item's author names in sort order. Authors must be
// loaded.
func (i *Item) AuthorNames() []string {
	names := make([]string, 0, len(i.Authors))
	for _, a := range i.Authors {
		names = append(names, a.Name)
	}
	return names
}

// Identifier returns the item's identifier of the given type, if any.
func (i *Item) Identifier(typ string) *Identifier {
	return i.PreferredIdentifier(typ)
}

// PreferredIdentifier returns the item's best identifier of the given types,
// which are listed in order of preference. Identifiers read from the item's
// own files win over any a provider reported, whatever their confidence.
func (i *Item) PreferredIdentifier(types ...string) *Identifier {
	var reported *Identifier
	for _, typ := range types {
		for _, id := range i.Identifiers {
			if id.Type != typ {
				continue
			}
			if !id.FromProvider() {
				return id
			}
			if reported == nil {
				reported = id
			}
		}
	}
	return reported
}
