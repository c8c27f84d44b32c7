package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/enrichment"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/urfave/cli/v2"
)

func enrichCommand() *cli.Command {
	return &cli.Command{
		Name:      "enrich",
		Usage:     "fill in item metadata from online providers",
		ArgsUsage: "<item-id> | --all",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "isbn", Usage: "look the item up by this ISBN"},
			&cli.StringFlag{Name: "title", Usage: "look the item up by title"},
			&cli.StringFlag{Name: "author", Usage: "narrow a title lookup by author"},
			&cli.BoolFlag{Name: "overwrite", Usage: "replace fields that already have a value"},
			&cli.BoolFlag{Name: "all", Usage: "enrich every item"},
			&cli.BoolFlag{Name: "missing", Usage: "with --all, only items missing authors, a description or an ISBN"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("all") {
				return enrichAll(c)
			}
			if c.Args().Len() != 1 {
				return cli.Exit("usage: folio enrich <item-id> [--isbn <isbn> | --title <title> [--author <author>]]", 2)
			}
			itemID, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid item id %q", c.Args().First()), 2)
			}
			q, err := lookupQuery(c.String("isbn"), c.String("title"), c.String("author"))
			if err != nil {
				return err
			}

			e := envFrom(c)
			result, err := enrichment.NewService(e.db, e.cfg).Enrich(c.Context, itemID, enrichment.EnrichOptions{
				Query:     q,
				Overwrite: c.Bool("overwrite"),
			})
			if err != nil {
				return errors.WithStack(err)
			}

			if result.Merged == nil {
				fmt.Fprintf(c.App.Writer, "No match for item %d\n", itemID)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Enriched item %d from %s (confidence %.2f)\n", itemID, result.AppliedSource, result.AppliedConfidence)
			if len(result.UpdatedFields) == 0 {
				fmt.Fprintln(c.App.Writer, "  nothing changed")
			} else {
				fmt.Fprintf(c.App.Writer, "  updated: %s\n", strings.Join(result.UpdatedFields, ", "))
			}
			return nil
		},
	}
}

// lookupQuery builds an explicit lookup from the flags. An ISBN and a title
// can't be combined, and an author alone isn't enough to search by.
func lookupQuery(isbn, title, author string) (enrichment.Query, error) {
	switch {
	case isbn != "" && (title != "" || author != ""):
		return enrichment.Query{}, cli.Exit("--isbn can't be combined with --title or --author", 2)
	case isbn != "":
		normalized := identifiers.ToISBN13(isbn)
		if normalized == "" {
			return enrichment.Query{}, cli.Exit(fmt.Sprintf("%q is not a valid ISBN", isbn), 2)
		}
		return enrichment.Query{ISBN: normalized}, nil
	case author != "" && title == "":
		return enrichment.Query{}, cli.Exit("--author requires --title", 2)
	}
	return enrichment.Query{Title: title, Author: author}, nil
}

func enrichAll(c *cli.Context) error {
	e := envFrom(c)

	sink, stop := renderProgress(e, "Enriching")
	result, err := enrichment.NewService(e.db, e.cfg).EnrichAll(c.Context, enrichment.EnrichAllOptions{
		OnlyMissing: c.Bool("missing"),
		Overwrite:   c.Bool("overwrite"),
		Progress:    sink,
	})
	stop()
	if err != nil {
		return errors.WithStack(err)
	}

	fmt.Fprintf(c.App.Writer, "Processed %d items: %d enriched, %d without a match, %d failed\n",
		result.Processed, result.Enriched, result.NoMatch, result.Failed)
	if result.Cancelled {
		fmt.Fprintln(c.App.Writer, "Cancelled before every item was processed")
	}
	return nil
}
