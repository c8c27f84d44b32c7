package enrichment

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
)

type handler struct {
	enrichmentService *Service
}

func (h *handler) enrich(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	// Bind params. Every field is optional.
	c.Set("disallow_empty_body", false)
	params := EnrichItemPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.enrichmentService.Enrich(ctx, id, EnrichOptions{
		Query:     params.query(),
		Overwrite: params.Overwrite,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func (h *handler) candidates(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	// Bind params.
	params := ListCandidatesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.enrichmentService.Candidates(ctx, id, params.query())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func (h *handler) applyCandidate(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	// Bind params.
	params := ApplyCandidatePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.enrichmentService.ApplyCandidate(ctx, id, params.candidate(), !params.KeepExisting)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}
