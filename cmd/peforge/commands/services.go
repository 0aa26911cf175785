package commands

import (
	"context"
	"fmt"

	"github.com/peforge/peforge/internal/bootrepair"
	"github.com/peforge/peforge/internal/bootrepair/bootrepairfake"
	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/diskpart/diskpartfake"
	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/imaging/imagingfake"
	"github.com/peforge/peforge/internal/inventory"
	"github.com/peforge/peforge/internal/journal"
	"github.com/peforge/peforge/internal/journal/memory"
	"github.com/peforge/peforge/internal/journal/sqlite"
	"github.com/peforge/peforge/internal/lifecycle"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo"
	"github.com/peforge/peforge/internal/sysinfo/sysinfofake"
	"github.com/peforge/peforge/internal/unattend"
	"github.com/peforge/peforge/internal/workflow"
)

// services is the shared service set the commands are wired with.
type services struct {
	system      sysinfo.System
	partitioner diskpart.Partitioner
	engine      imaging.Engine
	boot        bootrepair.Repairer
	journal     journal.Repository

	// fakeSystem is set in fake mode so commands can seed files the dry
	// run expects to find.
	fakeSystem *sysinfofake.System
}

// newServices creates the real or fake service set depending on the global
// flags.
func newServices(ctx context.Context, rootCmd *RootCommand) (*services, error) {
	logger := rootCmd.Logger

	if rootCmd.Fake {
		logger.Warningf("Fake mode enabled, nothing will touch the disks")

		sys := sysinfofake.NewSystem('X')
		const gib = uint64(1024) * 1024 * 1024
		sys.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 120 * gib, FreeBytes: 80 * gib, Label: "Windows", HasWindows: true})
		sys.SetVolume('D', sysinfofake.Volume{Fixed: true, TotalBytes: 240 * gib, FreeBytes: 200 * gib, Label: "Data"})
		sys.SetVolume('X', sysinfofake.Volume{Fixed: true, TotalBytes: 1 * gib, FreeBytes: 512 * 1024 * 1024, Label: "WinPE"})

		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create journal repository: %w", err)
		}

		return &services{
			system:      sys,
			partitioner: diskpartfake.NewPartitioner(sys),
			engine:      imagingfake.NewEngine(),
			boot:        bootrepairfake.NewRepairer(),
			journal:     repo,
			fakeSystem:  sys,
		}, nil
	}

	partitioner, err := diskpart.NewClient(diskpart.ClientConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create diskpart client: %w", err)
	}

	engine, err := imaging.NewDISMEngine(imaging.DISMEngineConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create image engine: %w", err)
	}

	boot, err := bootrepair.NewTools(bootrepair.ToolsConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create boot repairer: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: rootCmd.JournalPath,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create journal repository: %w", err)
	}

	return &services{
		system:      sysinfo.New(),
		partitioner: partitioner,
		engine:      engine,
		boot:        boot,
		journal:     repo,
	}, nil
}

// newLifecycleManager wires the inventory scanner and lifecycle manager on
// top of the service set.
func (s *services) newLifecycleManager(rootCmd *RootCommand) (*lifecycle.Manager, error) {
	scanner, err := inventory.NewScanner(inventory.ScannerConfig{
		System:      s.system,
		Partitioner: s.partitioner,
		Logger:      rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create inventory scanner: %w", err)
	}

	manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
		Inventory:   scanner,
		Partitioner: s.partitioner,
		System:      s.system,
		Logger:      rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create lifecycle manager: %w", err)
	}

	return manager, nil
}

// newWorkflowRunner wires the full workflow runner on top of the service set.
func (s *services) newWorkflowRunner(rootCmd *RootCommand) (*workflow.Runner, error) {
	manager, err := s.newLifecycleManager(rootCmd)
	if err != nil {
		return nil, err
	}

	cfg := workflow.RunnerConfig{
		Lifecycle:   manager,
		Partitioner: s.partitioner,
		System:      s.system,
		Engine:      s.engine,
		Boot:        s.boot,
		Journal:     s.journal,
		Logger:      rootCmd.Logger,
	}

	// Customization and answer files shell out to Windows tools; skip
	// them in fake mode.
	if s.fakeSystem != nil {
		cfg.Customizer = noopCustomizer{}
		cfg.Unattend = noopUnattend{}
	}

	runner, err := workflow.NewRunner(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create workflow runner: %w", err)
	}

	return runner, nil
}

type noopCustomizer struct{}

func (noopCustomizer) Apply(_ context.Context, _ string, _ model.AdvancedOptions) error { return nil }

type noopUnattend struct{}

func (noopUnattend) Generate(_ string, _ unattend.Options) error { return nil }
