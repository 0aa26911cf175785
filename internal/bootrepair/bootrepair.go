// Package bootrepair rebuilds the boot configuration of a freshly applied
// or restored Windows volume.
package bootrepair

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/winexec"
)

// Execer runs a boot tool and returns its combined output.
type Execer interface {
	Run(ctx context.Context, tool string, args ...string) ([]byte, error)
}

type processExecer struct{}

// NewExecer returns the real process executor.
func NewExecer() Execer { return processExecer{} }

func (processExecer) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	winexec.Hide(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.Bytes(), err
}

// Repairer is the boot repair contract.
type Repairer interface {
	// Repair rebuilds the boot files and entries for the Windows layout
	// on the target volume. uefi selects the firmware flavor.
	Repair(ctx context.Context, target rune, uefi bool) error
}

// ToolsConfig is the configuration of the tool-backed repairer.
type ToolsConfig struct {
	// BCDBootPath is the bcdboot executable. Defaults to "bcdboot.exe".
	BCDBootPath string
	// BootsectPath is the bootsect executable. Defaults to "bootsect.exe".
	BootsectPath string
	Execer       Execer
	Logger       log.Logger
}

func (c *ToolsConfig) defaults() error {
	if c.BCDBootPath == "" {
		c.BCDBootPath = "bcdboot.exe"
	}
	if c.BootsectPath == "" {
		c.BootsectPath = "bootsect.exe"
	}
	if c.Execer == nil {
		c.Execer = NewExecer()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "bootrepair.Tools"})

	return nil
}

// Tools is the Repairer implementation on top of bcdboot and bootsect.
type Tools struct {
	bcdbootPath  string
	bootsectPath string
	execer       Execer
	logger       log.Logger
}

// NewTools creates a new tool-backed boot repairer.
func NewTools(cfg ToolsConfig) (*Tools, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tools{
		bcdbootPath:  cfg.BCDBootPath,
		bootsectPath: cfg.BootsectPath,
		execer:       cfg.Execer,
		logger:       cfg.Logger,
	}, nil
}

var _ Repairer = (*Tools)(nil)

// Repair runs bcdboot against the target's Windows directory. On BIOS
// machines a failing bcdboot gets one more chance after bootsect rewrites
// the master boot record, which fixes volumes that carried no boot code at
// all.
func (t *Tools) Repair(ctx context.Context, target rune, uefi bool) error {
	windowsDir := model.Drive(target) + `\Windows`
	firmware := "ALL"
	if uefi {
		firmware = "UEFI"
	}

	t.logger.Infof("Rebuilding boot configuration for %s (%s)", windowsDir, firmware)

	out, err := t.execer.Run(ctx, t.bcdbootPath, windowsDir, "/f", firmware)
	if err == nil {
		return nil
	}

	if uefi {
		return fmt.Errorf("bcdboot failed: %w: %s", err, lastLine(out))
	}

	t.logger.Warningf("bcdboot failed (%s), rewriting boot sector and retrying", lastLine(out))

	if out, berr := t.execer.Run(ctx, t.bootsectPath, "/nt60", model.Drive(target), "/force", "/mbr"); berr != nil {
		return fmt.Errorf("bootsect failed: %w: %s", berr, lastLine(out))
	}

	if out, err = t.execer.Run(ctx, t.bcdbootPath, windowsDir, "/f", firmware); err != nil {
		return fmt.Errorf("bcdboot failed after boot sector rewrite: %w: %s", err, lastLine(out))
	}

	return nil
}

func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
