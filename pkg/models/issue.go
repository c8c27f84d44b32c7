package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	IssueTypeIOError             = "io_error"
	IssueTypeMimeMismatch        = "mime_mismatch"
	IssueTypeDuplicate           = "duplicate"
	IssueTypeMissingMetadata     = "missing_metadata"
	IssueTypeUnreadableDirectory = "unreadable_directory"
)

const (
	IssueSeverityInfo    = "info"
	IssueSeverityWarning = "warning"
	IssueSeverityError   = "error"
)

type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:iss"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ItemID    *int      `json:"item_id"`
	FileID    *int      `json:"file_id"`
	SessionID *int      `json:"session_id"`
	Type      string    `bun:",nullzero" json:"type"`
	Message   string    `bun:",nullzero" json:"message"`
	Severity  string    `bun:",nullzero" json:"severity"`
}
