package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/urfave/cli/v2"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list library items",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "only items whose title or author contains the text"},
			&cli.BoolFlag{Name: "missing", Usage: "only items missing authors, a description or an ISBN"},
			&cli.IntFlag{Name: "limit", Value: 100},
			&cli.IntFlag{Name: "offset"},
			&cli.BoolFlag{Name: "json", Usage: "print the items as JSON"},
		},
		Action: func(c *cli.Context) error {
			e := envFrom(c)

			opts := items.ListItemsOptions{MissingMetadata: c.Bool("missing")}
			if limit := c.Int("limit"); limit > 0 {
				opts.Limit = &limit
			}
			if offset := c.Int("offset"); offset > 0 {
				opts.Offset = &offset
			}
			if search := c.String("search"); search != "" {
				opts.Search = &search
			}

			list, total, err := items.NewService(e.db).ListItemsWithTotal(c.Context, opts)
			if err != nil {
				return errors.WithStack(err)
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return errors.WithStack(enc.Encode(list))
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAUTHORS\tYEAR\tISBN\tFILES\tSIZE\tUPDATED")
			for _, item := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					item.ID,
					item.Title,
					strings.Join(item.AuthorNames(), ", "),
					year(item),
					isbn(item),
					fileCount(item),
					humanize.Bytes(uint64(totalSize(item))), //nolint:gosec // sizes are never negative
					humanize.Time(item.UpdatedAt),
				)
			}
			if err := w.Flush(); err != nil {
				return errors.WithStack(err)
			}
			fmt.Fprintf(c.App.Writer, "\n%s of %s items\n", humanize.Comma(int64(len(list))), humanize.Comma(int64(total)))
			return nil
		},
	}
}

func year(item *models.Item) string {
	if item.PublishedYear == nil {
		return "-"
	}
	return fmt.Sprint(*item.PublishedYear)
}

// isbn prefers the ISBN-13. Identifiers come back ordered by confidence.
func isbn(item *models.Item) string {
	fallback := "-"
	for _, id := range item.Identifiers {
		switch id.Type {
		case models.IdentifierTypeISBN13:
			return id.Value
		case models.IdentifierTypeISBN10:
			if fallback == "-" {
				fallback = id.Value
			}
		}
	}
	return fallback
}

func fileCount(item *models.Item) string {
	active := 0
	for _, f := range item.Files {
		if f.Status == models.FileStatusActive {
			active++
		}
	}
	if missing := len(item.Files) - active; missing > 0 {
		return fmt.Sprintf("%d (%d missing)", active, missing)
	}
	return fmt.Sprint(active)
}

func totalSize(item *models.Item) int64 {
	var size int64
	for _, f := range item.Files {
		if f.Status == models.FileStatusActive {
			size += f.SizeBytes
		}
	}
	return size
}
