package organizer

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the organizer routes. Apply runs as a
// background job; plan and rollback run inline.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config) {
	h := &handler{
		organizerService: NewService(db, cfg),
		jobService:       jobs.NewService(db),
	}

	g.POST("/plan", h.plan)
	g.POST("/apply", h.apply)
	g.POST("/rollback", h.rollback)
}
