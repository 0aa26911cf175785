// Package customize applies the optional registry tweaks to an offline
// Windows image by loading its hives and editing them in place.
package customize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/winexec"
)

// Customizer applies advanced options to an offline image root.
type Customizer interface {
	Apply(ctx context.Context, targetRoot string, opts model.AdvancedOptions) error
}

// Execer runs the registry tool and returns its combined output.
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

// Hive mount points while the offline image is being edited.
const (
	softwareMount = `HKLM\peforge_SOFTWARE`
	systemMount   = `HKLM\peforge_SYSTEM`
	userMount     = `HKLM\peforge_NTUSER`
)

// tweak is one registry value write against a mounted offline hive.
type tweak struct {
	mount string
	key   string
	name  string
	typ   string
	value string
}

// tweaksFor maps each enabled option to its registry writes.
func tweaksFor(opts model.AdvancedOptions) []tweak {
	var tweaks []tweak

	if opts.RemoveShortcutArrow {
		tweaks = append(tweaks, tweak{
			mount: softwareMount,
			key:   `Microsoft\Windows\CurrentVersion\Explorer\Shell Icons`,
			name:  "29",
			typ:   "REG_SZ",
			value: `%systemroot%\system32\imageres.dll,197`,
		})
	}
	if opts.RestoreClassicContextMenu {
		tweaks = append(tweaks, tweak{
			mount: userMount,
			key:   `Software\Classes\CLSID\{86ca1aa0-34aa-4e8b-a509-50c905bae2a2}\InprocServer32`,
			name:  "",
			typ:   "REG_SZ",
			value: "",
		})
	}
	if opts.DisableWindowsUpdate {
		tweaks = append(tweaks, tweak{
			mount: softwareMount,
			key:   `Policies\Microsoft\Windows\WindowsUpdate\AU`,
			name:  "NoAutoUpdate",
			typ:   "REG_DWORD",
			value: "1",
		})
	}
	if opts.DisableDefender {
		tweaks = append(tweaks, tweak{
			mount: softwareMount,
			key:   `Policies\Microsoft\Windows Defender`,
			name:  "DisableAntiSpyware",
			typ:   "REG_DWORD",
			value: "1",
		})
	}
	if opts.DisableUAC {
		tweaks = append(tweaks, tweak{
			mount: softwareMount,
			key:   `Microsoft\Windows\CurrentVersion\Policies\System`,
			name:  "EnableLUA",
			typ:   "REG_DWORD",
			value: "0",
		})
	}
	if opts.DisableDeviceEncryption {
		tweaks = append(tweaks, tweak{
			mount: systemMount,
			key:   `ControlSet001\Control\BitLocker`,
			name:  "PreventDeviceEncryption",
			typ:   "REG_DWORD",
			value: "1",
		})
	}

	return tweaks
}

// RegToolConfig is the configuration of the reg.exe-backed customizer.
type RegToolConfig struct {
	// RegPath is the registry tool. Defaults to "reg.exe".
	RegPath string
	Execer  Execer
	Logger  log.Logger
}

func (c *RegToolConfig) defaults() error {
	if c.RegPath == "" {
		c.RegPath = "reg.exe"
	}
	if c.Execer == nil {
		c.Execer = NewExecer()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "customize.RegTool"})

	return nil
}

// RegTool is the Customizer implementation on top of reg.exe.
type RegTool struct {
	regPath string
	execer  Execer
	logger  log.Logger
}

// NewRegTool creates a new reg.exe-backed customizer.
func NewRegTool(cfg RegToolConfig) (*RegTool, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &RegTool{
		regPath: cfg.RegPath,
		execer:  cfg.Execer,
		logger:  cfg.Logger,
	}, nil
}

var _ Customizer = (*RegTool)(nil)

// Apply loads the needed offline hives, writes every enabled tweak and
// unloads the hives again. A hive that was never needed is never touched.
func (r *RegTool) Apply(ctx context.Context, targetRoot string, opts model.AdvancedOptions) error {
	tweaks := tweaksFor(opts)
	if len(tweaks) == 0 {
		return nil
	}

	needed := map[string]string{}
	for _, tw := range tweaks {
		needed[tw.mount] = hiveFile(targetRoot, tw.mount)
	}

	var loaded []string
	defer func() {
		for _, mount := range loaded {
			if out, err := r.execer.Run(ctx, r.regPath, "unload", mount); err != nil {
				r.logger.Warningf("could not unload hive %s: %s: %s", mount, err, lastLine(out))
			}
		}
	}()

	for mount, file := range needed {
		if out, err := r.execer.Run(ctx, r.regPath, "load", mount, file); err != nil {
			return fmt.Errorf("could not load hive %s: %w: %s", file, err, lastLine(out))
		}
		loaded = append(loaded, mount)
	}

	for _, tw := range tweaks {
		args := []string{"add", tw.mount + `\` + tw.key, "/f", "/t", tw.typ, "/d", tw.value}
		if tw.name != "" {
			args = append(args, "/v", tw.name)
		} else {
			args = append(args, "/ve")
		}
		if out, err := r.execer.Run(ctx, r.regPath, args...); err != nil {
			return fmt.Errorf("could not write %s\\%s: %w: %s", tw.key, tw.name, err, lastLine(out))
		}
	}

	r.logger.Infof("Applied %d registry tweaks to %s", len(tweaks), targetRoot)

	return nil
}

// hiveFile maps a mount point to the hive file of the offline image.
func hiveFile(targetRoot, mount string) string {
	switch mount {
	case systemMount:
		return filepath.Join(targetRoot, "Windows", "System32", "config", "SYSTEM")
	case userMount:
		return filepath.Join(targetRoot, "Users", "Default", "NTUSER.DAT")
	default:
		return filepath.Join(targetRoot, "Windows", "System32", "config", "SOFTWARE")
	}
}

func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
