package joblogs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

type ListJobLogsOptions struct {
	JobID int
	// AfterID lets a client tail a running scan or organize job.
	AfterID *int
	Levels  []string
	// Search matches messages case-insensitively, e.g. a file name.
	Search *string
	Limit  *int
}

// LevelCounts tallies a job's log lines by level, so a finished scan can
// report how many files it warned about without paging through every line.
type LevelCounts struct {
	Info  int `json:"info"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
	Fatal int `json:"fatal"`
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateJobLog(ctx context.Context, log *models.JobLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(log).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ListJobLogs returns a job's log lines oldest first.
func (svc *Service) ListJobLogs(ctx context.Context, opts ListJobLogsOptions) ([]*models.JobLog, error) {
	logs := []*models.JobLog{}

	q := svc.db.
		NewSelect().
		Model(&logs).
		Where("jl.job_id = ?", opts.JobID).
		Order("jl.id ASC")

	if opts.AfterID != nil {
		q = q.Where("jl.id > ?", *opts.AfterID)
	}
	if len(opts.Levels) > 0 {
		q = q.Where("jl.level IN (?)", bun.In(opts.Levels))
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("instr(lower(jl.message), lower(?)) > 0", *opts.Search)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return logs, nil
}

// CountJobLogs tallies every log line of the job by level.
func (svc *Service) CountJobLogs(ctx context.Context, jobID int) (*LevelCounts, error) {
	var rows []struct {
		Level string `bun:"level"`
		Count int    `bun:"level_count"`
	}

	err := svc.db.
		NewSelect().
		Model((*models.JobLog)(nil)).
		ColumnExpr("jl.level AS level").
		ColumnExpr("COUNT(*) AS level_count").
		Where("jl.job_id = ?", jobID).
		Group("jl.level").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	counts := &LevelCounts{}
	for _, r := range rows {
		switch r.Level {
		case models.JobLogLevelInfo:
			counts.Info = r.Count
		case models.JobLogLevelWarn:
			counts.Warn = r.Count
		case models.JobLogLevelError:
			counts.Error = r.Count
		case models.JobLogLevelFatal:
			counts.Fatal = r.Count
		}
	}
	return counts, nil
}
