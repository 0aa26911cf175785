package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/peforge/peforge/internal/config"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/progress"
)

type InstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configDir string

	// Direct flags (ignored when --config-dir is set).
	target     string
	image      string
	index      int
	label      string
	driverMode string
	unattended bool
	username   string

	// Advanced option flags.
	removeShortcutArrow bool
	classicContextMenu  bool
	disableUpdate       bool
	disableDefender     bool
	disableUAC          bool
	disableEncryption   bool
	removeUWPApps       bool
}

// NewInstallCommand returns the install command.
func NewInstallCommand(rootCmd *RootCommand, app *kingpin.Application) *InstallCommand {
	c := &InstallCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("install", "Format a partition and apply a Windows image to it.")

	c.Cmd.Flag("config-dir", "Directory holding "+config.InstallFileName+" (overrides the direct flags).").StringVar(&c.configDir)

	// Direct flags.
	c.Cmd.Flag("target", "Target partition drive letter (e.g. C).").Short('t').StringVar(&c.target)
	c.Cmd.Flag("image", "Path to the wim/esd/swm image file.").Short('i').StringVar(&c.image)
	c.Cmd.Flag("index", "1-based volume image index inside the image file.").Default("1").IntVar(&c.index)
	c.Cmd.Flag("label", "Volume label for the formatted partition.").Default("Windows").StringVar(&c.label)
	c.Cmd.Flag("drivers", "Driver handling (none, save, import).").Default("none").EnumVar(&c.driverMode, "none", "save", "import")
	c.Cmd.Flag("unattended", "Generate unattended setup answer files.").BoolVar(&c.unattended)
	c.Cmd.Flag("username", "Local account name for unattended setup.").StringVar(&c.username)

	// Advanced option flags.
	c.Cmd.Flag("remove-shortcut-arrow", "Remove the shortcut overlay arrow.").BoolVar(&c.removeShortcutArrow)
	c.Cmd.Flag("classic-context-menu", "Restore the classic context menu.").BoolVar(&c.classicContextMenu)
	c.Cmd.Flag("disable-windows-update", "Disable automatic Windows updates.").BoolVar(&c.disableUpdate)
	c.Cmd.Flag("disable-defender", "Disable Windows Defender.").BoolVar(&c.disableDefender)
	c.Cmd.Flag("disable-uac", "Disable user account control.").BoolVar(&c.disableUAC)
	c.Cmd.Flag("disable-device-encryption", "Prevent automatic device encryption.").BoolVar(&c.disableEncryption)
	c.Cmd.Flag("remove-uwp-apps", "Remove preinstalled UWP applications on first logon.").BoolVar(&c.removeUWPApps)

	return c
}

func (c InstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c InstallCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.installConfig()
	if err != nil {
		return err
	}

	svcs, err := newServices(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	// The fake system starts with no files; seed the image so the dry run
	// can get past the preflight check.
	if svcs.fakeSystem != nil {
		_ = svcs.fakeSystem.WriteHidden(cfg.ImagePath, nil)
	}

	runner, err := svcs.newWorkflowRunner(c.rootCmd)
	if err != nil {
		return err
	}

	rep := progress.NewReporter(128)
	tracker := progress.NewTracker(model.OperationInstall, rep.Events())

	err = watchProgress(logger, model.OperationInstall, tracker, func() error {
		return runner.Install(ctx, *cfg, rep)
	})
	if err != nil {
		return fmt.Errorf("could not install: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Install finished successfully on %s\n", cfg.TargetPartition)

	return nil
}

// installConfig resolves the install configuration from the YAML directory
// or the direct flags.
func (c InstallCommand) installConfig() (*model.InstallConfig, error) {
	if c.configDir != "" {
		cfg, err := config.LoadInstall(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("could not load install configuration: %w", err)
		}
		return cfg, nil
	}

	if c.target == "" {
		return nil, fmt.Errorf("--target is required when no --config-dir is given")
	}
	if c.image == "" {
		return nil, fmt.Errorf("--image is required when no --config-dir is given")
	}

	driverMode := model.DriverModeNone
	switch c.driverMode {
	case "save":
		driverMode = model.DriverModeSaveOnly
	case "import":
		driverMode = model.DriverModeImport
	}

	return &model.InstallConfig{
		TargetPartition: c.target,
		ImagePath:       c.image,
		VolumeIndex:     c.index,
		VolumeLabel:     c.label,
		DriverMode:      driverMode,
		Unattended:      c.unattended,
		CustomUsername:  c.username,
		Advanced: model.AdvancedOptions{
			RemoveShortcutArrow:       c.removeShortcutArrow,
			RestoreClassicContextMenu: c.classicContextMenu,
			DisableWindowsUpdate:      c.disableUpdate,
			DisableDefender:           c.disableDefender,
			DisableUAC:                c.disableUAC,
			DisableDeviceEncryption:   c.disableEncryption,
			RemoveUWPApps:             c.removeUWPApps,
		},
	}, nil
}
