package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/folio/pkg/binder"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/enrichment"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/joblogs"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/organizer"
	"github.com/shishobooks/folio/pkg/scanner"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e, err := newEcho(cfg, db)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	registerRoutes(e, db, cfg)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func registerRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config) {
	// Items routes, including enrichment of a single item
	itemsGroup := e.Group("/items")
	items.RegisterRoutesWithGroup(itemsGroup, db)
	enrichment.RegisterRoutesWithGroup(itemsGroup, db, cfg)

	// Missing file routes
	filesGroup := e.Group("/files")
	items.RegisterFileRoutesWithGroup(filesGroup, db)

	// Issues routes
	issuesGroup := e.Group("/issues")
	items.RegisterIssueRoutesWithGroup(issuesGroup, db)

	// Scan routes
	scansGroup := e.Group("/scans")
	scanner.RegisterRoutesWithGroup(scansGroup, db)

	// Organizer routes
	organizeGroup := e.Group("/organize")
	organizer.RegisterRoutesWithGroup(organizeGroup, db, cfg)

	// Jobs routes
	jobsGroup := e.Group("/jobs")
	jobs.RegisterRoutesWithGroup(jobsGroup, db)
	joblogs.RegisterRoutes(jobsGroup, db)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
