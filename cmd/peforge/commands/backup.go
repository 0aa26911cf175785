package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/peforge/peforge/internal/config"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/progress"
)

type BackupCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configDir string

	// Direct flags (ignored when --config-dir is set).
	source      string
	savePath    string
	name        string
	description string
	format      string
	splitSizeMB int
	incremental bool
}

// NewBackupCommand returns the backup command.
func NewBackupCommand(rootCmd *RootCommand, app *kingpin.Application) *BackupCommand {
	c := &BackupCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("backup", "Capture a partition into a wim/esd/swm image.")

	c.Cmd.Flag("config-dir", "Directory holding "+config.BackupFileName+" (overrides the direct flags).").StringVar(&c.configDir)

	// Direct flags.
	c.Cmd.Flag("source", "Source partition drive letter (e.g. C).").Short('s').StringVar(&c.source)
	c.Cmd.Flag("save-path", "Directory the image file is written to.").StringVar(&c.savePath)
	c.Cmd.Flag("name", "Image name (also the file base name).").Default("backup").StringVar(&c.name)
	c.Cmd.Flag("description", "Image description.").StringVar(&c.description)
	c.Cmd.Flag("format", "Image format (wim, esd, swm).").Default("wim").EnumVar(&c.format, "wim", "esd", "swm")
	c.Cmd.Flag("split-size", "Chunk size in MB for the swm format.").IntVar(&c.splitSizeMB)
	c.Cmd.Flag("incremental", "Append to an existing image instead of creating one.").BoolVar(&c.incremental)

	return c
}

func (c BackupCommand) Name() string { return c.Cmd.FullCommand() }

func (c BackupCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.backupConfig()
	if err != nil {
		return err
	}

	svcs, err := newServices(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	// The fake engine does not write files, so the verify step needs the
	// expected outputs seeded up front.
	if svcs.fakeSystem != nil {
		for _, ext := range []string{"wim", "esd", "swm"} {
			_ = svcs.fakeSystem.WriteHidden(filepath.Join(cfg.SavePath, cfg.Name+"."+ext), nil)
		}
	}

	runner, err := svcs.newWorkflowRunner(c.rootCmd)
	if err != nil {
		return err
	}

	rep := progress.NewReporter(128)
	tracker := progress.NewTracker(model.OperationBackup, rep.Events())

	err = watchProgress(logger, model.OperationBackup, tracker, func() error {
		return runner.Backup(ctx, *cfg, rep)
	})
	if err != nil {
		return fmt.Errorf("could not back up: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Backup finished successfully for %s\n", cfg.SourcePartition)

	return nil
}

// backupConfig resolves the backup configuration from the YAML directory or
// the direct flags.
func (c BackupCommand) backupConfig() (*model.BackupConfig, error) {
	if c.configDir != "" {
		cfg, err := config.LoadBackup(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("could not load backup configuration: %w", err)
		}
		return cfg, nil
	}

	if c.source == "" {
		return nil, fmt.Errorf("--source is required when no --config-dir is given")
	}
	if c.savePath == "" {
		return nil, fmt.Errorf("--save-path is required when no --config-dir is given")
	}

	return &model.BackupConfig{
		SourcePartition: c.source,
		SavePath:        c.savePath,
		Name:            c.name,
		Description:     c.description,
		Format:          model.ImageFormat(c.format),
		SplitSizeMB:     c.splitSizeMB,
		Incremental:     c.incremental,
	}, nil
}
