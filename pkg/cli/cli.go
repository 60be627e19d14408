// Package cli provides the command-line interface for pageflow.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"PAGEFLOW_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "Load environment variables from this file (default: ./.env if present)",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error)",
	},
	&cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format (console, json)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging and per-record detail",
		EnvVars: []string{"PAGEFLOW_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the application. Split from Execute so tests can run it.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "pageflow",
		Usage:   "Data-driven UI and API scenario runner",
		Version: Version,
		Description: `pageflow runs a scenario once per record of a data file and reports
one outcome per record.

Examples:
  pageflow run --scenario login --data testdata/login.csv
  pageflow run --scenario cart --data testdata/products.json --driver webdriver
  pageflow run --scenario flows/checkout.yaml --data testdata/login.csv --parallel 2
  pageflow api --data testdata/api.json --base-url https://reqres.in
  pageflow validate testdata/`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			apiCommand,
			validateCommand,
			scenariosCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
