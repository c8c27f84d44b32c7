package scanner

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/models"
)

type handler struct {
	sessionService *SessionService
	jobService     *jobs.Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateScanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	root, err := filepath.Abs(params.RootPath)
	if err != nil {
		return errcodes.ValidationError("root_path must be a valid path.")
	}

	// Check if a scan job is already running or pending.
	hasActive, err := h.jobService.HasActiveJobByType(ctx, models.JobTypeScan)
	if err != nil {
		return errors.WithStack(err)
	}
	if hasActive {
		return errcodes.Conflict("A scan job is already running or pending.")
	}

	job := &models.Job{
		Type:   models.JobTypeScan,
		Status: models.JobStatusPending,
		DataParsed: &models.JobScanData{
			RootPath:   root,
			Extensions: params.Extensions,
		},
	}
	if err := h.jobService.CreateJob(ctx, job); err != nil {
		return errors.WithStack(err)
	}

	job, err = h.jobService.RetrieveJob(ctx, jobs.RetrieveJobOptions{
		ID: &job.ID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, job))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Scan session")
	}

	session, err := h.sessionService.RetrieveSession(ctx, RetrieveSessionOptions{
		ID:             &id,
		IncludeEntries: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, session))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListSessionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	sessions, total, err := h.sessionService.ListSessionsWithTotal(ctx, ListSessionsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		RootPath: params.RootPath,
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Sessions []*models.ScanSession `json:"sessions"`
		Total    int                   `json:"total"`
	}{sessions, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
