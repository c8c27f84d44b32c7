package items

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
)

type handler struct {
	itemService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListItemsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	items, total, err := h.itemService.ListItemsWithTotal(ctx, ListItemsOptions{
		Limit:           &params.Limit,
		Offset:          &params.Offset,
		Search:          params.Search,
		MissingMetadata: params.MissingMetadata,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Items []*models.Item `json:"items"`
		Total int            `json:"total"`
	}{items, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	// Bind params.
	params := UpdateItemPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fetch the item.
	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Keep track of what's been changed.
	opts := UpdateItemOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != item.Title {
		item.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Subtitle != nil {
		item.Subtitle = params.Subtitle
		opts.Columns = append(opts.Columns, "subtitle")
	}
	if params.Description != nil {
		item.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Language != nil {
		item.Language = params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.PublishedYear != nil {
		item.PublishedYear = params.PublishedYear
		opts.Columns = append(opts.Columns, "published_year")
	}
	if params.Series != nil {
		item.Series = params.Series
		opts.Columns = append(opts.Columns, "series")
	}
	if params.SeriesIndex != nil {
		item.SeriesIndex = params.SeriesIndex
		opts.Columns = append(opts.Columns, "series_index")
	}
	if params.Authors != nil {
		item.Authors = authorsFromNames(params.Authors)
		opts.UpdateAuthors = true
	}

	// Update the model.
	err = h.itemService.UpdateItem(ctx, item, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload the model.
	item, err = h.itemService.RetrieveItem(ctx, RetrieveItemOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) itemIssues(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	issues, err := h.itemService.ListIssues(ctx, ListIssuesOptions{
		ItemID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, issues))
}

func (h *handler) listIssues(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListIssuesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	issues, total, err := h.itemService.ListIssuesWithTotal(ctx, ListIssuesOptions{
		Limit:     &params.Limit,
		Offset:    &params.Offset,
		ItemID:    params.ItemID,
		SessionID: params.SessionID,
		Type:      params.Type,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Issues []*models.Issue `json:"issues"`
		Total  int             `json:"total"`
	}{issues, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listMissingFiles(c echo.Context) error {
	ctx := c.Request().Context()

	files, err := h.itemService.ListMissingFiles(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Files []*models.File `json:"files"`
	}{files}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) relinkFile(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("File")
	}

	// Bind params.
	params := RelinkFilePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	file, err := h.itemService.RelinkFile(ctx, id, params.Path)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, file))
}

func (h *handler) removeMissingFile(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("File")
	}

	if err := h.itemService.RemoveMissingFile(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
