package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/pageflow/pkg/data"
	"github.com/devicelab-dev/pageflow/pkg/scenario"
	"github.com/devicelab-dev/pageflow/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check data files and flows without running them",
	ArgsUsage: "<file|dir>...",
	Description: `Load every data file (.csv, .xlsx, .json, .yaml) and parse every flow
file under the given paths. A file with any schema violation is rejected
as a whole.

Examples:
  pageflow validate testdata/
  pageflow validate testdata/products.json --schema testdata/products.schema.json
  pageflow validate flows/ --include-tags smoke`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "bucket", Usage: "Only load these buckets of hierarchical files"},
		&cli.StringFlag{Name: "schema", Usage: "JSON Schema for hierarchical data files"},
		&cli.StringSliceFlag{Name: "include-tags", Usage: "Only validate flows with these tags"},
		&cli.StringSliceFlag{Name: "exclude-tags", Usage: "Skip flows with these tags"},
	},
	Action: validateAction,
}

func validateAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}

	v := validator.New(data.Options{
		Buckets: c.StringSlice("bucket"),
		Schema:  c.String("schema"),
	}, c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	result := v.Validate(c.Args().Slice()...)

	w := c.App.Writer
	for _, f := range result.Files {
		switch {
		case f.Skipped:
			fmt.Fprintf(w, "  %s-%s %s %s(skipped by tags)%s\n", color(colorCyan), color(colorReset), f.Path, color(colorGray), color(colorReset))
		case f.Kind == validator.KindFlow:
			fmt.Fprintf(w, "  %s✓%s %s (%d steps)\n", color(colorGreen), color(colorReset), f.Path, f.Steps)
		default:
			fmt.Fprintf(w, "  %s✓%s %s (%d records)\n", color(colorGreen), color(colorReset), f.Path, f.Records)
		}
	}
	for _, err := range result.Errors {
		fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}

	fmt.Fprintln(w)
	if !result.IsValid() {
		return cli.Exit(fmt.Sprintf("%d file(s) rejected", len(result.Errors)), 1)
	}
	fmt.Fprintf(w, "  %d file(s) valid, %d records\n", len(result.Files), result.Records())
	return nil
}

var scenariosCommand = &cli.Command{
	Name:  "scenarios",
	Usage: "List built-in scenarios",
	Action: func(c *cli.Context) error {
		for _, name := range scenario.Names() {
			fmt.Fprintln(c.App.Writer, name)
		}
		return nil
	},
}
