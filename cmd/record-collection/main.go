// Command record-collection runs the record collection API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/justestif/go-record-collection/internal/config"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML config file",
		Value:   config.DefaultPath,
	}

	app := &cli.Command{
		Name:    "record-collection",
		Usage:   "Track the records you own and the ones you want",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema and exit",
				Flags:  []cli.Flag{configFlag},
				Action: migrate,
			},
			{
				Name:      "import",
				Usage:     "Import records from a CSV or XLSX file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					configFlag,
					&cli.Int64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "ID of the user who owns the imported records",
						Required: true,
					},
				},
				Action: importFile,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}
