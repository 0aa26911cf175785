package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/peforge/peforge/internal/inventory"
	"github.com/peforge/peforge/internal/printer"
)

type PartitionsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
	detail bool
}

// NewPartitionsCommand returns the partitions command.
func NewPartitionsCommand(rootCmd *RootCommand, app *kingpin.Application) *PartitionsCommand {
	c := &PartitionsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("partitions", "List fixed-disk partitions.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")
	c.Cmd.Flag("detail", "Resolve disk and partition numbers (slower, shells out per volume).").BoolVar(&c.detail)

	return c
}

func (c PartitionsCommand) Name() string { return c.Cmd.FullCommand() }

func (c PartitionsCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	scanner, err := inventory.NewScanner(inventory.ScannerConfig{
		System:      svcs.system,
		Partitioner: svcs.partitioner,
		Logger:      c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create inventory scanner: %w", err)
	}

	partitions, err := scanner.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list partitions: %w", err)
	}

	if c.detail {
		for i := range partitions {
			described, err := scanner.Describe(ctx, partitions[i])
			if err != nil {
				c.rootCmd.Logger.Warningf("could not describe %s: %s", partitions[i].Drive(), err)
				continue
			}
			partitions[i] = described
		}
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if len(partitions) == 0 {
		return p.PrintMessage("No fixed-disk partitions found.")
	}

	return p.PrintPartitions(partitions)
}
