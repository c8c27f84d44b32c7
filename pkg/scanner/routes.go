package scanner

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers scan session routes on a pre-configured
// group. Scans themselves run as background jobs.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		sessionService: NewSessionService(db),
		jobService:     jobs.NewService(db),
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
}
