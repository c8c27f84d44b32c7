package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/extractor"
)

func main() {
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
		ShowText    bool   `short:"t" long:"show-text" description:"Print the sampled body text used for identifier mining"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/extract-metadata <path/to/file.{epub,pdf}>")
		os.Exit(1)
	}

	ctx := log.WithContext(context.Background())
	metadata := extractor.Extract(ctx, args[0])

	fmt.Println(metadata)
	if missing := extractor.MissingFields(metadata); len(missing) > 0 {
		fmt.Printf("Missing:         %v\n", missing)
	}
	if metadata.PageCount != nil {
		fmt.Printf("Pages:           %d\n", *metadata.PageCount)
	}
	if opts.ShowText {
		fmt.Printf("\n%s\n", metadata.Text)
	}

	if opts.CoverOutput != "" && metadata.CoverData != nil {
		if err := os.WriteFile(opts.CoverOutput, metadata.CoverData, 0o644); err != nil {
			log.Err(err).Fatal("file write error")
		}
		fmt.Printf("Wrote cover to %s\n", opts.CoverOutput)
	}
}
