package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ScanStatusRunning   = "running"
	ScanStatusSuccess   = "success"
	ScanStatusFailed    = "failed"
	ScanStatusCancelled = "cancelled"
)

const (
	ScanStageWalk     = "walk"
	ScanStageClassify = "classify"
	ScanStageMissing  = "missing"
)

const (
	ScanActionAdded     = "added"
	ScanActionUpdated   = "updated"
	ScanActionMoved     = "moved"
	ScanActionUnchanged = "unchanged"
	ScanActionMissing   = "missing"
	ScanActionDuplicate = "duplicate"
	ScanActionError     = "error"
)

type ScanSession struct {
	bun.BaseModel `bun:"table:scan_sessions,alias:ss"`

	ID        int          `bun:",pk,nullzero" json:"id"`
	RootPath  string       `bun:",nullzero" json:"root_path"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at"`
	Status    string       `bun:",nullzero" json:"status"`
	Stage     *string      `json:"stage"`
	Error     *string      `json:"error"`
	Added     int          `json:"added"`
	Updated   int          `json:"updated"`
	Moved     int          `json:"moved"`
	Unchanged int          `json:"unchanged"`
	Missing   int          `json:"missing"`
	Entries   []*ScanEntry `bun:"rel:has-many,join:id=session_id" json:"entries,omitempty"`
}

type ScanEntry struct {
	bun.BaseModel `bun:"table:scan_entries,alias:se"`

	ID         int        `bun:",pk,nullzero" json:"id"`
	SessionID  int        `bun:",nullzero" json:"session_id"`
	Path       string     `bun:",nullzero" json:"path"`
	ModifiedAt *time.Time `json:"modified_at"`
	SizeBytes  *int64     `json:"size_bytes"`
	SHA256     *string    `bun:"sha256" json:"sha256"`
	Action     string     `bun:",nullzero" json:"action"`
	FileID     *int       `json:"file_id"`
}
