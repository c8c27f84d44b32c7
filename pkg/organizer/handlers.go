package organizer

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/models"
)

type handler struct {
	organizerService *Service
	jobService       *jobs.Service
}

func (h *handler) plan(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params. Every field is optional.
	c.Set("disallow_empty_body", false)
	params := PlanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	plan, err := h.organizerService.Plan(ctx, PlanOptions(params))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, plan))
}

func (h *handler) apply(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params. Every field is optional.
	c.Set("disallow_empty_body", false)
	params := PlanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fail fast on options the job would reject.
	opts, err := h.organizerService.resolveOptions(PlanOptions(params))
	if err != nil {
		return errors.WithStack(err)
	}
	if opts.Mode == ModeReference {
		return errcodes.ValidationError("Reference mode doesn't change any files.")
	}

	hasActive, err := h.jobService.HasActiveJobByType(ctx, models.JobTypeOrganize)
	if err != nil {
		return errors.WithStack(err)
	}
	if hasActive {
		return errcodes.Conflict("An organize job is already running or pending.")
	}

	job := &models.Job{
		Type:   models.JobTypeOrganize,
		Status: models.JobStatusPending,
		DataParsed: &models.JobOrganizeData{
			Mode:        opts.Mode,
			LibraryRoot: opts.LibraryRoot,
			Template:    opts.Template,
			ItemIDs:     opts.ItemIDs,
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

func (h *handler) rollback(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := RollbackPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	logPath := filepath.Clean(params.LogPath)
	if filepath.Base(filepath.Dir(logPath)) != MetadataDir {
		return errcodes.ValidationError("log_path must point to an organizer log.")
	}

	result, err := h.organizerService.Rollback(ctx, logPath)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}
