package imaging

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/winexec"
)

// LineRunner runs a tool and streams its standard output line by line.
type LineRunner interface {
	Run(ctx context.Context, onLine func(line string), tool string, args ...string) error
}

type processLineRunner struct{}

// NewLineRunner returns the real process line runner.
func NewLineRunner() LineRunner { return processLineRunner{} }

func (processLineRunner) Run(ctx context.Context, onLine func(string), tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	winexec.Hide(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not pipe %s output: %w", tool, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start %s: %w", tool, err)
	}

	scanner := bufio.NewScanner(stdout)
	// The tool redraws its progress bar with carriage returns on one line.
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}

	return nil
}

// scanCRLines is a bufio split function treating both \n and \r as line
// terminators.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// DISMEngineConfig is the configuration of the DISM-backed engine.
type DISMEngineConfig struct {
	// ToolPath is the dism executable. Defaults to "dism.exe".
	ToolPath string
	// Runner runs the tool. Defaults to the real process line runner.
	Runner LineRunner
	// ScratchDir is passed as the engine scratch directory when set.
	ScratchDir string
	Logger     log.Logger
}

func (c *DISMEngineConfig) defaults() error {
	if c.ToolPath == "" {
		c.ToolPath = "dism.exe"
	}
	if c.Runner == nil {
		c.Runner = NewLineRunner()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "imaging.DISMEngine"})

	return nil
}

// DISMEngine is the Engine implementation on top of the DISM command line
// tool.
type DISMEngine struct {
	toolPath   string
	runner     LineRunner
	scratchDir string
	logger     log.Logger
}

// NewDISMEngine creates a new DISM-backed image engine.
func NewDISMEngine(cfg DISMEngineConfig) (*DISMEngine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &DISMEngine{
		toolPath:   cfg.ToolPath,
		runner:     cfg.Runner,
		scratchDir: cfg.ScratchDir,
		logger:     cfg.Logger,
	}, nil
}

var _ Engine = (*DISMEngine)(nil)

// Apply applies a volume image onto the target root.
func (e *DISMEngine) Apply(ctx context.Context, opts ApplyOptions) error {
	args := []string{
		"/Apply-Image",
		"/ImageFile:" + opts.ImagePath,
		"/Index:" + strconv.Itoa(opts.VolumeIndex),
		"/ApplyDir:" + opts.TargetRoot,
	}

	e.logger.Infof("Applying image %s (index %d) to %s", opts.ImagePath, opts.VolumeIndex, opts.TargetRoot)

	return e.run(ctx, opts.Progress, args)
}

// Capture captures the source root into an image file. ESD captures use
// recovery compression; SWM captures write a WIM first and then split it.
func (e *DISMEngine) Capture(ctx context.Context, opts CaptureOptions) error {
	args := []string{"/Capture-Image"}
	if opts.Incremental {
		args[0] = "/Append-Image"
	}
	args = append(args,
		"/ImageFile:"+opts.ImagePath,
		"/CaptureDir:"+opts.SourceRoot,
		"/Name:"+opts.Name,
	)
	if opts.Description != "" {
		args = append(args, "/Description:"+opts.Description)
	}
	if opts.Format == model.ImageFormatESD {
		args = append(args, "/Compress:recovery")
	}

	e.logger.Infof("Capturing %s into %s (%s)", opts.SourceRoot, opts.ImagePath, opts.Format)

	if err := e.run(ctx, opts.Progress, args); err != nil {
		return err
	}

	if opts.Format == model.ImageFormatSWM && opts.SplitSizeMB > 0 {
		return e.split(ctx, opts)
	}

	return nil
}

func (e *DISMEngine) split(ctx context.Context, opts CaptureOptions) error {
	swm := strings.TrimSuffix(opts.ImagePath, ".wim") + ".swm"
	args := []string{
		"/Split-Image",
		"/ImageFile:" + opts.ImagePath,
		"/SWMFile:" + swm,
		"/FileSize:" + strconv.Itoa(opts.SplitSizeMB),
	}

	e.logger.Infof("Splitting %s into %d MB chunks", opts.ImagePath, opts.SplitSizeMB)

	return e.run(ctx, opts.Progress, args)
}

// AddDrivers injects drivers into an offline image.
func (e *DISMEngine) AddDrivers(ctx context.Context, targetRoot, driverDir string) error {
	args := []string{
		"/Image:" + targetRoot,
		"/Add-Driver",
		"/Driver:" + driverDir,
		"/Recurse",
	}

	e.logger.Infof("Importing drivers from %s into %s", driverDir, targetRoot)

	return e.run(ctx, nil, args)
}

// ExportDrivers saves the third-party drivers of an offline image.
func (e *DISMEngine) ExportDrivers(ctx context.Context, sourceRoot, destDir string) error {
	args := []string{
		"/Image:" + sourceRoot,
		"/Export-Driver",
		"/Destination:" + destDir,
	}

	e.logger.Infof("Exporting drivers from %s to %s", sourceRoot, destDir)

	return e.run(ctx, nil, args)
}

func (e *DISMEngine) run(ctx context.Context, sink Sink, args []string) error {
	if e.scratchDir != "" {
		args = append(args, "/ScratchDir:"+e.scratchDir)
	}

	var lastLine string
	onLine := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		lastLine = line

		if sink == nil {
			return
		}
		if percent, ok := parsePercent(line); ok {
			sink(percent, "")
		}
	}

	if err := e.runner.Run(ctx, onLine, e.toolPath, args...); err != nil {
		return fmt.Errorf("image engine failed: %w: %s", err, lastLine)
	}

	return nil
}

// parsePercent extracts a progress percentage from an output line such as
// "[==========          18.0%                ]".
func parsePercent(line string) (int, bool) {
	idx := strings.IndexByte(line, '%')
	if idx <= 0 {
		return 0, false
	}

	start := idx
	for start > 0 {
		c := line[start-1]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		start--
	}
	if start == idx {
		return 0, false
	}

	f, err := strconv.ParseFloat(line[start:idx], 64)
	if err != nil || f < 0 || f > 100 {
		return 0, false
	}

	return int(f), true
}
