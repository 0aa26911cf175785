package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type CleanupCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	target string
}

// NewCleanupCommand returns the cleanup command.
func NewCleanupCommand(rootCmd *RootCommand, app *kingpin.Application) *CleanupCommand {
	c := &CleanupCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("cleanup", "Remove the auto-created staging partition and extend the target into its space.")
	c.Cmd.Flag("target", "Partition to extend into the reclaimed space (e.g. C).").Short('t').Required().StringVar(&c.target)

	return c
}

func (c CleanupCommand) Name() string { return c.Cmd.FullCommand() }

func (c CleanupCommand) Run(ctx context.Context) error {
	if len(c.target) == 0 {
		return fmt.Errorf("target partition is required")
	}
	target := rune(c.target[0])
	if target >= 'a' && target <= 'z' {
		target = target - 'a' + 'A'
	}
	if target < 'A' || target > 'Z' {
		return fmt.Errorf("invalid target partition %q", c.target)
	}

	svcs, err := newServices(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	manager, err := svcs.newLifecycleManager(c.rootCmd)
	if err != nil {
		return err
	}

	result, err := manager.CleanupAndExtend(ctx, target)
	if err != nil {
		return fmt.Errorf("could not clean up: %w", err)
	}

	switch {
	case !result.Deleted:
		fmt.Fprintf(c.rootCmd.Stdout, "No auto-created staging partition found, nothing to do\n")
	case result.SpaceReclaimed:
		fmt.Fprintf(c.rootCmd.Stdout, "Removed staging partition %c: and extended %c:\n", result.DeletedLetter, target)
	default:
		fmt.Fprintf(c.rootCmd.Stdout, "Removed staging partition %c:, but %c: could not absorb the space\n", result.DeletedLetter, target)
	}

	return nil
}
