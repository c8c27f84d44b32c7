package joblogs

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestJobLogger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusInProgress,
		DataParsed: &models.JobScanData{RootPath: "/books"},
	}
	require.NoError(t, jobs.NewService(db).CreateJob(ctx, job))

	svc := NewService(db)
	jl := svc.NewJobLogger(ctx, job.ID, logger.New())

	jl.Info("scan started", logger.Data{"root": "/books", "long": strings.Repeat("x", 5000)})
	jl.Progress(progress.Event{Current: 1, Total: 2, Message: "a.epub", Status: progress.StatusProcessing})
	jl.Progress(progress.Event{Current: 1, Total: 2, Message: "b.epub is unreadable", Status: progress.StatusError})
	jl.Error("scan failed", assert.AnError, nil)

	logs, err := svc.ListJobLogs(ctx, ListJobLogsOptions{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, models.JobLogLevelInfo, logs[0].Level)
	require.NotNil(t, logs[0].Data)
	data := map[string]string{}
	require.NoError(t, json.Unmarshal([]byte(*logs[0].Data), &data))
	assert.Equal(t, "/books", data["root"])
	assert.Len(t, data["long"], maxDataValueLen-1)
	assert.Contains(t, data["long"], " ... ")

	assert.Equal(t, models.JobLogLevelWarn, logs[1].Level)
	assert.Equal(t, "b.epub is unreadable", logs[1].Message)

	assert.Equal(t, models.JobLogLevelError, logs[2].Level)
	assert.NotNil(t, logs[2].StackTrace)

	errorsOnly, err := svc.ListJobLogs(ctx, ListJobLogsOptions{JobID: job.ID, Levels: []string{models.JobLogLevelError}})
	require.NoError(t, err)
	assert.Len(t, errorsOnly, 1)

	after, err := svc.ListJobLogs(ctx, ListJobLogsOptions{JobID: job.ID, AfterID: &logs[1].ID})
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestTruncateMiddle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncateMiddle("short", 10))
	assert.Equal(t, "abc ... xyz", truncateMiddle("abcdefghijklmnopqrstuvwxyz", 11))
}
