// Package workflow orchestrates the install and backup pipelines: ordered
// steps over the partitioning, imaging and boot services, with progress
// events and a persisted run journal.
package workflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/peforge/peforge/internal/bootrepair"
	"github.com/peforge/peforge/internal/customize"
	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/journal"
	"github.com/peforge/peforge/internal/lifecycle"
	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/progress"
	"github.com/peforge/peforge/internal/sysinfo"
	"github.com/peforge/peforge/internal/unattend"
)

// Lifecycle is the partition lifecycle surface the workflows use.
type Lifecycle interface {
	FindSuitableDataPartition(ctx context.Context, exclude rune, requiredBytes uint64) (rune, bool, error)
	CleanupAndExtend(ctx context.Context, target rune) (lifecycle.CleanupResult, error)
}

// UnattendGenerator writes answer files into an applied image.
type UnattendGenerator interface {
	Generate(targetRoot string, opts unattend.Options) error
}

// RunnerConfig is the configuration of the workflow runner.
type RunnerConfig struct {
	Lifecycle   Lifecycle
	Partitioner diskpart.Partitioner
	System      sysinfo.System
	Engine      imaging.Engine
	Boot        bootrepair.Repairer
	Journal     journal.Repository
	Customizer  customize.Customizer
	Unattend    UnattendGenerator
	Logger      log.Logger

	// DriversDir overrides where exported drivers are staged. Defaults
	// to a "drivers" directory next to the install image.
	DriversDir string
}

func (c *RunnerConfig) defaults() error {
	if c.Lifecycle == nil {
		return fmt.Errorf("lifecycle manager is required")
	}
	if c.Partitioner == nil {
		return fmt.Errorf("partitioner is required")
	}
	if c.System == nil {
		return fmt.Errorf("system prober is required")
	}
	if c.Engine == nil {
		return fmt.Errorf("image engine is required")
	}
	if c.Boot == nil {
		return fmt.Errorf("boot repairer is required")
	}
	if c.Journal == nil {
		return fmt.Errorf("journal repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "workflow.Runner"})

	if c.Customizer == nil {
		tool, err := customize.NewRegTool(customize.RegToolConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create customizer: %w", err)
		}
		c.Customizer = tool
	}
	if c.Unattend == nil {
		gen, err := unattend.NewGenerator(unattend.GeneratorConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create unattend generator: %w", err)
		}
		c.Unattend = gen
	}

	return nil
}

// Runner executes install and backup runs.
type Runner struct {
	lifecycle   Lifecycle
	partitioner diskpart.Partitioner
	system      sysinfo.System
	engine      imaging.Engine
	boot        bootrepair.Repairer
	journal     journal.Repository
	customizer  customize.Customizer
	unattend    UnattendGenerator
	logger      log.Logger
	driversDir  string
}

// NewRunner creates a new workflow runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		lifecycle:   cfg.Lifecycle,
		partitioner: cfg.Partitioner,
		system:      cfg.System,
		engine:      cfg.Engine,
		boot:        cfg.Boot,
		journal:     cfg.Journal,
		customizer:  cfg.Customizer,
		unattend:    cfg.Unattend,
		logger:      cfg.Logger,
		driversDir:  cfg.DriversDir,
	}, nil
}

// step is one pipeline stage. Fatal steps abort the run on error, the rest
// degrade to logged warnings.
type step struct {
	name  model.WorkflowStep
	fatal bool
	run   func(ctx context.Context) error
}

// Install runs the install pipeline against the reporter's event stream.
// It returns nil on success and on partial success (non-fatal step
// failures); only fatal steps surface as an error.
func (r *Runner) Install(ctx context.Context, cfg model.InstallConfig, rep *progress.Reporter) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	target, err := driveLetter(cfg.TargetPartition)
	if err != nil {
		return err
	}

	driversDir := r.driversDir
	if driversDir == "" {
		driversDir = filepath.Join(filepath.Dir(cfg.ImagePath), "drivers")
	}
	driversExported := false

	steps := []step{
		{name: model.StepFormatPartition, fatal: true, run: func(ctx context.Context) error {
			if !r.system.FileExists(cfg.ImagePath) {
				return fmt.Errorf("%s: %w", cfg.ImagePath, model.ErrMissingImage)
			}

			// The old system's drivers disappear with the format, so
			// they are saved first when asked for.
			if cfg.DriverMode != model.DriverModeNone && r.system.HasWindowsLayout(target) {
				if err := r.engine.ExportDrivers(ctx, model.Root(target), driversDir); err != nil {
					r.logger.Warningf("could not export drivers, continuing: %s", err)
				} else {
					driversExported = true
				}
			}

			label := cfg.VolumeLabel
			if label == "" {
				label = "Windows"
			}
			return r.partitioner.FormatVolume(ctx, target, label)
		}},

		{name: model.StepApplyImage, fatal: true, run: func(ctx context.Context) error {
			sink, join := relaySink(rep)
			err := r.engine.Apply(ctx, imaging.ApplyOptions{
				ImagePath:   cfg.ImagePath,
				TargetRoot:  model.Root(target),
				VolumeIndex: cfg.VolumeIndex,
				Progress:    sink,
			})
			join()
			return err
		}},

		{name: model.StepImportDrivers, run: func(ctx context.Context) error {
			if cfg.DriverMode != model.DriverModeImport || !driversExported {
				return nil
			}
			return r.engine.AddDrivers(ctx, model.Root(target), driversDir)
		}},

		{name: model.StepRepairBoot, fatal: true, run: func(ctx context.Context) error {
			return r.boot.Repair(ctx, target, r.system.IsUEFI())
		}},

		{name: model.StepAdvancedOptions, run: func(ctx context.Context) error {
			return r.customizer.Apply(ctx, model.Root(target), cfg.Advanced)
		}},

		{name: model.StepGenerateUnattend, run: func(ctx context.Context) error {
			if !cfg.Unattended {
				return nil
			}
			return r.unattend.Generate(model.Root(target), unattend.Options{
				Username:      cfg.CustomUsername,
				RemoveUWPApps: cfg.Advanced.RemoveUWPApps,
			})
		}},

		{name: model.StepCleanup, run: func(ctx context.Context) error {
			_, err := r.lifecycle.CleanupAndExtend(ctx, target)
			return err
		}},
	}

	return r.execute(ctx, r.newRun(model.OperationInstall, target), rep, steps)
}

// Backup runs the backup pipeline against the reporter's event stream.
func (r *Runner) Backup(ctx context.Context, cfg model.BackupConfig, rep *progress.Reporter) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	source, err := driveLetter(cfg.SourcePartition)
	if err != nil {
		return err
	}
	if cfg.Name == "" {
		cfg.Name = "backup"
	}

	var imagePath string

	steps := []step{
		{name: model.StepReadConfig, fatal: true, run: func(ctx context.Context) error {
			if !r.system.DriveExists(source) {
				return fmt.Errorf("source partition %c: %w", source, model.ErrNotFound)
			}

			space, err := r.system.Space(source)
			if err != nil {
				return fmt.Errorf("could not measure source partition %c: %w", source, err)
			}
			required := space.TotalBytes - space.FreeBytes

			savePath, err := r.resolveSavePath(ctx, cfg.SavePath, source, required)
			if err != nil {
				return err
			}

			imagePath = filepath.Join(savePath, cfg.Name+"."+imageExt(cfg.Format))
			return nil
		}},

		{name: model.StepCaptureImage, fatal: true, run: func(ctx context.Context) error {
			sink, join := relaySink(rep)
			err := r.engine.Capture(ctx, imaging.CaptureOptions{
				SourceRoot:  model.Root(source),
				ImagePath:   imagePath,
				Name:        cfg.Name,
				Description: cfg.Description,
				Format:      cfg.Format,
				SplitSizeMB: cfg.SplitSizeMB,
				Incremental: cfg.Incremental,
				Progress:    sink,
			})
			join()
			return err
		}},

		{name: model.StepVerifyBackup, fatal: true, run: func(ctx context.Context) error {
			path := imagePath
			if cfg.Format == model.ImageFormatSWM {
				path = strings.TrimSuffix(imagePath, ".wim") + ".swm"
			}
			if !r.system.FileExists(path) {
				return fmt.Errorf("captured image %s: %w", path, model.ErrMissingImage)
			}
			return nil
		}},

		{name: model.StepRepairBoot, run: func(ctx context.Context) error {
			return r.boot.Repair(ctx, source, r.system.IsUEFI())
		}},

		{name: model.StepCleanup, run: func(ctx context.Context) error {
			_, err := r.lifecycle.CleanupAndExtend(ctx, source)
			return err
		}},
	}

	return r.execute(ctx, r.newRun(model.OperationBackup, source), rep, steps)
}

// resolveSavePath keeps the configured save path when its volume has room
// for the backup, and repoints to a suitable data partition otherwise.
func (r *Runner) resolveSavePath(ctx context.Context, savePath string, source rune, required uint64) (string, error) {
	if letter, err := driveLetter(savePath); err == nil {
		if space, serr := r.system.Space(letter); serr == nil && space.FreeBytes >= required {
			return savePath, nil
		}
	}

	r.logger.Warningf("save path %q unusable or too small, looking for a data partition", savePath)

	letter, created, err := r.lifecycle.FindSuitableDataPartition(ctx, source, required)
	if err != nil {
		return "", fmt.Errorf("no save location with %d bytes free: %w", required, err)
	}
	if created {
		r.logger.Infof("Created staging partition %c: for the backup", letter)
	}

	return filepath.Join(model.Root(letter), "peforge-backup"), nil
}

func (r *Runner) newRun(op model.Operation, target rune) model.Run {
	return model.Run{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String(),
		Operation: op,
		Target:    string(target),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// execute drives the steps in order, reporting progress and journaling every
// outcome. The first fatal error aborts the run; non-fatal errors are
// recorded as warnings and the pipeline continues.
func (r *Runner) execute(ctx context.Context, run model.Run, rep *progress.Reporter, steps []step) error {
	logger := r.logger.WithValues(log.Kv{"run": run.ID, "op": run.Operation})

	if err := r.journal.CreateRun(ctx, run); err != nil {
		logger.Warningf("could not journal run start: %s", err)
	}

	for i, s := range steps {
		// Cancellation is only honored between steps: a destructive
		// step that started must finish.
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, run, rep, s.name, err, logger)
		}

		rep.StepChanged(s.name)
		logger.Infof("Step %s", s.name)

		err := s.run(ctx)
		switch {
		case err == nil:
			r.record(ctx, run.ID, i+1, s.name, model.StepStatusOK, "", logger)
		case s.fatal:
			r.record(ctx, run.ID, i+1, s.name, model.StepStatusFailed, err.Error(), logger)
			return r.fail(ctx, run, rep, s.name, err, logger)
		default:
			r.record(ctx, run.ID, i+1, s.name, model.StepStatusWarning, err.Error(), logger)
			logger.Warningf("Step %s failed, continuing: %s", s.name, err)
		}
	}

	rep.StepChanged(model.StepComplete)
	r.record(ctx, run.ID, len(steps)+1, model.StepComplete, model.StepStatusOK, "", logger)
	rep.Completed()

	if err := r.journal.FinishRun(ctx, run.ID, model.RunStatusCompleted, ""); err != nil {
		logger.Warningf("could not journal run end: %s", err)
	}

	logger.Infof("Run finished")

	return nil
}

func (r *Runner) fail(ctx context.Context, run model.Run, rep *progress.Reporter, name model.WorkflowStep, err error, logger log.Logger) error {
	stepErr := model.StepError{Step: name, Err: err}
	rep.Failed(stepErr.Error())

	if jerr := r.journal.FinishRun(ctx, run.ID, model.RunStatusFailed, stepErr.Error()); jerr != nil {
		logger.Warningf("could not journal run end: %s", jerr)
	}

	logger.Errorf("Run failed at step %s: %s", name, err)

	return stepErr
}

func (r *Runner) record(ctx context.Context, runID string, seq int, name model.WorkflowStep, status model.StepStatus, errText string, logger log.Logger) {
	err := r.journal.RecordStep(ctx, model.StepRecord{
		RunID:    runID,
		Sequence: seq,
		Name:     name,
		Status:   status,
		Error:    errText,
		At:       time.Now().UTC(),
	})
	if err != nil {
		logger.Warningf("could not journal step %s: %s", name, err)
	}
}

// relaySink bridges an engine's progress stream onto the reporter through a
// dedicated goroutine, so a chatty engine never runs on the worker's stack.
// join must be called after the engine call returns; it waits for the relay
// to finish so the step's events all precede its completion.
func relaySink(rep *progress.Reporter) (sink imaging.Sink, join func()) {
	type update struct {
		percent int
		status  string
	}

	ch := make(chan update, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		last := -1
		for u := range ch {
			if u.status != "" {
				rep.Status(u.status)
			}
			if u.percent != last {
				last = u.percent
				rep.Progress(u.percent)
			}
		}
	}()

	sink = func(percent int, status string) { ch <- update{percent: percent, status: status} }
	join = func() {
		close(ch)
		<-done
	}

	return sink, join
}

// imageExt returns the file extension the capture writes. SWM captures go
// through an intermediate wim that the engine splits afterwards.
func imageExt(format model.ImageFormat) string {
	switch format {
	case model.ImageFormatESD:
		return "esd"
	default:
		return "wim"
	}
}

// driveLetter extracts the drive letter of a partition reference such as
// "C", "c:" or "C:\data".
func driveLetter(s string) (rune, error) {
	if s == "" {
		return 0, fmt.Errorf("empty partition reference: %w", model.ErrNotValid)
	}

	letter := rune(s[0])
	if letter >= 'a' && letter <= 'z' {
		letter = letter - 'a' + 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return 0, fmt.Errorf("invalid partition reference %q: %w", s, model.ErrNotValid)
	}

	return letter, nil
}
