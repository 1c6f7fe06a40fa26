package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yanqian/faq-search/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "faqctl",
		Usage: "Maintain and query the FAQ search catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Override the embedding provider (openai, deterministic)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Embed every question in faqs.json and write embeddings.npy",
				Action: generateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Catalog directory (defaults to catalog.dir)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests (0 uses half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Questions sent per embedding request (0 uses catalog.batchSize or 16)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N questions",
						Value: 25,
					},
				},
			},
			{
				Name:   "publish",
				Usage:  "Copy a file catalog into Postgres or an S3-compatible bucket",
				Action: publishCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Catalog directory (defaults to catalog.dir)",
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Destination: postgres or s3",
						Required: true,
					},
				},
			},
			{
				Name:   "validate",
				Usage:  "Load the configured catalog and print its statistics",
				Action: validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Validate a file catalog in this directory instead of the configured source",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Run one query against the configured catalog",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Question to search for",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of distinct answers to return",
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Search a file catalog in this directory instead of the configured source",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := strings.ToLower(c.String("log-level"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}
	slog.SetDefault(logger.NewWithWriter(os.Stderr, level))
	return nil
}
