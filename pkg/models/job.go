package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

const (
	JobTypeScan     = "scan"
	JobTypeEnrich   = "enrich"
	JobTypeOrganize = "organize"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeScan:
		job.DataParsed = &JobScanData{}
	case JobTypeEnrich:
		job.DataParsed = &JobEnrichData{}
	case JobTypeOrganize:
		job.DataParsed = &JobOrganizeData{}
	default:
		return errors.Errorf("unknown job type %q", job.Type)
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// IsFinished reports whether the job has reached a terminal status.
func (job *Job) IsFinished() bool {
	switch job.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type JobScanData struct {
	RootPath   string   `json:"root_path"`
	Extensions []string `json:"extensions,omitempty"`
	SessionID  *int     `json:"session_id,omitempty"`
}

type JobEnrichData struct {
	ItemIDs     []int `json:"item_ids,omitempty"`
	OnlyMissing bool  `json:"only_missing"`
	Enriched    int   `json:"enriched"`
}

type JobOrganizeData struct {
	Mode        string `json:"mode"`
	LibraryRoot string `json:"library_root"`
	Template    string `json:"template,omitempty"`
	ItemIDs     []int  `json:"item_ids,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
}
