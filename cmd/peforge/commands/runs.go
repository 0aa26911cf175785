package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/peforge/peforge/internal/printer"
)

type RunsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
}

// NewRunsCommand returns the runs command.
func NewRunsCommand(rootCmd *RootCommand, app *kingpin.Application) *RunsCommand {
	c := &RunsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("runs", "List journaled install and backup runs.")
	c.Cmd.Arg("id", "Run ID; when given, prints the run with its steps.").StringVar(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RunsCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if c.id != "" {
		run, steps, err := svcs.journal.GetRun(ctx, c.id)
		if err != nil {
			return fmt.Errorf("could not get run %q: %w", c.id, err)
		}
		return p.PrintRunDetail(*run, steps)
	}

	runs, err := svcs.journal.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	if len(runs) == 0 {
		return p.PrintMessage("No runs recorded.")
	}

	return p.PrintRuns(runs)
}
