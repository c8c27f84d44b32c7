package items

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers item routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	itemService := NewService(db)

	h := &handler{
		itemService: itemService,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("/:id", h.update)
	g.GET("/:id/issues", h.itemIssues)
}

// RegisterIssueRoutesWithGroup registers the issue listing on its own group.
func RegisterIssueRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		itemService: NewService(db),
	}

	g.GET("", h.listIssues)
}

// RegisterFileRoutesWithGroup registers the missing file routes on their own
// group.
func RegisterFileRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		itemService: NewService(db),
	}

	g.GET("/missing", h.listMissingFiles)
	g.POST("/:id/relink", h.relinkFile)
	g.DELETE("/:id", h.removeMissingFile)
}
