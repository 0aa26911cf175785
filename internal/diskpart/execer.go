package diskpart

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/peforge/peforge/internal/winexec"
)

// Execer runs the partitioning tool and returns its raw standard output
// (still in the host codepage). Implementations return output even when the
// process exits non-zero, because the transcript is the authority on what
// happened.
type Execer interface {
	Run(ctx context.Context, tool string, args ...string) ([]byte, error)
}

type processExecer struct{}

// NewExecer returns the real process executor.
func NewExecer() Execer { return processExecer{} }

func (processExecer) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	winexec.Hide(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w (stderr: %s)", tool, err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// defaultScratchDirs is the ordered candidate list for script files. WinPE
// may not have a conventional temp directory, so every candidate is created
// on probe and the first that exists afterwards wins.
func defaultScratchDirs() []string {
	return []string{
		`X:\Windows\Temp`,
		`X:\Temp`,
		os.TempDir(),
		`X:\`,
	}
}

// writeScript writes the script into the first usable scratch directory and
// returns its path.
func (c *Client) writeScript(name, script string) (string, error) {
	for _, dir := range c.scratchDirs {
		_ = os.MkdirAll(dir, 0755)
		if _, err := os.Stat(dir); err != nil {
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(script), 0644); err != nil {
			continue
		}
		return path, nil
	}

	return "", fmt.Errorf("no usable scratch directory for partitioning scripts (tried %v)", c.scratchDirs)
}
