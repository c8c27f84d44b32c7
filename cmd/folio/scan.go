package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/scanner"
	"github.com/urfave/cli/v2"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "scan a directory and sync the library with it",
		ArgsUsage: "<root>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "file extension to include (repeatable, defaults to the configured list)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("usage: folio scan <root>", 2)
			}
			e := envFrom(c)

			sink, stop := renderProgress(e, "Scanning")
			result, err := scanner.NewService(e.db, e.cfg).Scan(c.Context, scanner.ScanOptions{
				RootPath:   c.Args().First(),
				Extensions: c.StringSlice("ext"),
				Progress:   sink,
			})
			stop()
			if err != nil {
				return errors.WithStack(err)
			}

			fmt.Fprintf(c.App.Writer, "Scan %d %s in %.1fs\n", result.SessionID, result.Status, result.Duration)
			fmt.Fprintf(c.App.Writer, "  added:      %d (%d duplicates)\n", result.Added, result.Duplicates)
			fmt.Fprintf(c.App.Writer, "  updated:    %d\n", result.Updated)
			fmt.Fprintf(c.App.Writer, "  moved:      %d\n", result.Moved)
			fmt.Fprintf(c.App.Writer, "  unchanged:  %d\n", result.Unchanged)
			fmt.Fprintf(c.App.Writer, "  missing:    %d\n", result.Missing)
			fmt.Fprintf(c.App.Writer, "  errors:     %d\n", result.Errors)
			return nil
		},
	}
}
