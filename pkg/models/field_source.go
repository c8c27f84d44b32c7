package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Field sources record where an item field's current value came from.
const (
	FieldSourceEmbedded = "embedded"
	FieldSourceFilename = "filename"
)

type FieldSource struct {
	bun.BaseModel `bun:"table:item_field_sources,alias:ifs"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ItemID     int       `bun:",nullzero" json:"item_id"`
	Field      string    `bun:",nullzero" json:"field"`
	Source     string    `bun:",nullzero" json:"source"`
	Confidence float64   `json:"confidence"`
}
