package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	FileStatusActive  = "active"
	FileStatusMissing = "missing"
)

const HashAlgoSHA256 = "sha256"

type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ItemID     int       `bun:",nullzero" json:"item_id"`
	Item       *Item     `bun:"rel:belongs-to,join:item_id=id" json:"item,omitempty"`
	Path       string    `bun:",nullzero" json:"path"`
	Filename   string    `bun:",nullzero" json:"filename"`
	Extension  string    `json:"extension"`
	MimeType   *string   `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	SHA256     string    `bun:"sha256,nullzero" json:"sha256"`
	HashAlgo   string    `bun:",nullzero,default:'sha256'" json:"hash_algo"`
	ModifiedAt time.Time `json:"modified_at"`
	Status     string    `bun:",nullzero" json:"status"`
}
