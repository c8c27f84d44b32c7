package enrichment

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the enrichment routes on the items group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config) {
	h := &handler{
		enrichmentService: NewService(db, cfg),
	}

	g.POST("/:id/enrich", h.enrich)
	g.GET("/:id/candidates", h.candidates)
	g.POST("/:id/candidates/apply", h.applyCandidate)
}
