package joblogs

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/models"
)

type handler struct {
	jobLogService *Service
	jobService    *jobs.Service
}

type listLogsResponse struct {
	Job    *models.Job      `json:"job"`
	Logs   []*models.JobLog `json:"logs"`
	Counts *LevelCounts     `json:"counts"`
	// NextAfterID is the after_id to send to pick up lines logged since.
	NextAfterID *int `json:"next_after_id"`
}

func (h *handler) listLogs(c echo.Context) error {
	ctx := c.Request().Context()

	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Job")
	}

	job, err := h.jobService.RetrieveJob(ctx, jobs.RetrieveJobOptions{
		ID: &jobID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Bind params.
	params := ListJobLogsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	logs, err := h.jobLogService.ListJobLogs(ctx, ListJobLogsOptions{
		JobID:   jobID,
		AfterID: params.AfterID,
		Levels:  params.Level,
		Search:  params.Search,
		Limit:   &params.Limit,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	counts, err := h.jobLogService.CountJobLogs(ctx, jobID)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := listLogsResponse{Job: job, Logs: logs, Counts: counts, NextAfterID: params.AfterID}
	if len(logs) > 0 {
		resp.NextAfterID = &logs[len(logs)-1].ID
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
