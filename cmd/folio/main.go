package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/version"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

const envKey = "env"

// env is what every command needs once the global flags are parsed.
type env struct {
	cfg   *config.Config
	db    *bun.DB
	quiet bool
}

func main() {
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(log.WithContext(ctx), os.Args); err != nil {
		log.Err(err).Fatal("folio error")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "folio",
		Usage:   "manage an e-book library",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the library database (defaults to the XDG data directory)",
				EnvVars: []string{"FOLIO_DB"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "don't draw progress bars",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			scanCommand(),
			listCommand(),
			enrichCommand(),
			organizeCommand(),
			rollbackCommand(),
		},
	}
}

func setup(c *cli.Context) error {
	// Help and version output don't need a database.
	if c.Args().Len() == 0 {
		return nil
	}

	dbPath := c.String("db")
	cfg, err := config.Load(func(cfg *config.Config) {
		if dbPath != "" {
			cfg.DatabaseFilePath = dbPath
		}
		config.UseDataDir(cfg)
	})
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	if _, err := migrations.BringUpToDate(c.Context, db); err != nil {
		db.Close()
		return errors.Wrap(err, "failed to migrate database")
	}

	c.App.Metadata = map[string]interface{}{
		envKey: &env{cfg: cfg, db: db, quiet: c.Bool("quiet")},
	}
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return errors.WithStack(e.db.Close())
	}
	return nil
}

func envFrom(c *cli.Context) *env {
	return c.App.Metadata[envKey].(*env)
}
