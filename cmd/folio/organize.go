package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/organizer"
	"github.com/urfave/cli/v2"
)

func planFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mode", Usage: "reference, copy or move (defaults to the configured mode)"},
		&cli.StringFlag{Name: "root", Usage: "library root (defaults to the configured root)"},
		&cli.StringFlag{Name: "template", Usage: "path template, e.g. \"{Author}/{Title}.{ext}\""},
		&cli.IntSliceFlag{Name: "item", Usage: "only organize this item (repeatable)"},
	}
}

func planOptions(c *cli.Context) organizer.PlanOptions {
	return organizer.PlanOptions{
		Mode:        c.String("mode"),
		LibraryRoot: c.String("root"),
		Template:    c.String("template"),
		ItemIDs:     c.IntSlice("item"),
	}
}

func organizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "organize",
		Usage: "arrange library files under the library root",
		Subcommands: []*cli.Command{
			{
				Name:  "plan",
				Usage: "show what organizing would do without touching any file",
				Flags: append(planFlags(), &cli.BoolFlag{Name: "json", Usage: "print the plan as JSON"}),
				Action: func(c *cli.Context) error {
					e := envFrom(c)
					plan, err := organizer.NewService(e.db, e.cfg).Plan(c.Context, planOptions(c))
					if err != nil {
						return errors.WithStack(err)
					}

					if c.Bool("json") {
						enc := json.NewEncoder(c.App.Writer)
						enc.SetIndent("", "  ")
						return errors.WithStack(enc.Encode(plan))
					}
					return printPlan(c, plan)
				},
			},
			{
				Name:  "apply",
				Usage: "plan and execute the file operations",
				Flags: planFlags(),
				Action: func(c *cli.Context) error {
					e := envFrom(c)
					svc := organizer.NewService(e.db, e.cfg)

					plan, err := svc.Plan(c.Context, planOptions(c))
					if err != nil {
						return errors.WithStack(err)
					}
					if plan.Mode == organizer.ModeReference {
						return cli.Exit("reference mode doesn't change any files; pass --mode copy or --mode move", 2)
					}
					if plan.Pending() == 0 {
						fmt.Fprintln(c.App.Writer, "Nothing to organize")
						return nil
					}

					sink, stop := renderProgress(e, "Organizing")
					result, err := svc.Apply(c.Context, plan, organizer.ApplyOptions{Progress: sink})
					stop()
					if result != nil {
						fmt.Fprintf(c.App.Writer, "%d applied, %d skipped, %d reconciled, %d missing\n",
							result.Applied, result.Skipped, result.Reconciled, result.Missing)
						if result.LogPath != "" {
							fmt.Fprintf(c.App.Writer, "Undo with: folio rollback %s\n", result.LogPath)
						}
						if result.Cancelled {
							fmt.Fprintln(c.App.Writer, "Cancelled before every entry was applied")
						}
					}
					return errors.WithStack(err)
				},
			},
		},
	}
}

func printPlan(c *cli.Context, plan *organizer.Plan) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tFROM\tTO\tNOTE")
	for _, entry := range plan.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Action, entry.From, entry.To, entry.Reason)
	}
	if err := w.Flush(); err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintf(c.App.Writer, "\n%d of %d files would change (%s mode, root %s)\n",
		plan.Pending(), len(plan.Entries), plan.Mode, plan.LibraryRoot)
	return nil
}

func rollbackCommand() *cli.Command {
	return &cli.Command{
		Name:      "rollback",
		Usage:     "undo an organize run from its log",
		ArgsUsage: "<log-path>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("usage: folio rollback <log-path>", 2)
			}
			e := envFrom(c)

			result, err := organizer.NewService(e.db, e.cfg).Rollback(c.Context, c.Args().First())
			if err != nil {
				return errors.WithStack(err)
			}

			fmt.Fprintf(c.App.Writer, "%d restored, %d removed, %d skipped\n", result.Restored, result.Removed, result.Skipped)
			for _, msg := range result.Errors {
				fmt.Fprintf(c.App.ErrWriter, "  %s\n", msg)
			}
			if len(result.Errors) > 0 {
				return cli.Exit(fmt.Sprintf("%d entries couldn't be rolled back", len(result.Errors)), 1)
			}
			return nil
		},
	}
}
