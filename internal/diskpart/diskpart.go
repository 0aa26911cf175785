// Package diskpart wraps the Windows scriptable disk-partitioning tool.
//
// Every operation is translated into a line-oriented script, executed as
// `diskpart /s <script>`, and judged by parsing the textual transcript. The
// transcript is locale dependent (the tool emits localized text in the host
// codepage), so all keyword matching and number extraction lives behind this
// one seam; see parse.go.
package diskpart

import (
	"context"
	"fmt"
	"os"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
)

// VolumeDetail is a point-in-time resolution of a volume's position. Either
// number may be nil when the transcript did not yield it; callers must treat
// nil as "not enough information", never as zero.
type VolumeDetail struct {
	DiskNumber      *int
	PartitionNumber *int
	Style           model.PartitionStyle
}

// Partitioner is the shrink/extend adapter interface consumed by the
// inventory scanner and the partition lifecycle manager.
type Partitioner interface {
	// QueryShrinkMax returns the maximum shrinkable size of a volume in
	// MiB. 0 means "cannot shrink" and is not an error by itself.
	QueryShrinkMax(ctx context.Context, letter rune) (uint64, error)
	// CreatePartition shrinks the source volume by sizeMB, creates a new
	// primary partition in the freed space, quick-formats it and assigns
	// a fresh drive letter, all in a single script invocation. It returns
	// the new letter.
	CreatePartition(ctx context.Context, source rune, sizeMB uint64) (rune, error)
	// DeletePartition deletes the volume mounted at letter.
	DeletePartition(ctx context.Context, letter rune) error
	// FormatVolume quick-formats the volume as NTFS with the given label.
	FormatVolume(ctx context.Context, letter rune, label string) error
	// ExtendPartition extends the volume into the unallocated space
	// immediately following it.
	ExtendPartition(ctx context.Context, letter rune) error
	// Rescan forces the OS to re-read the disk layout. Must be called
	// after any delete and before trusting free-space numbers again.
	Rescan(ctx context.Context) error
	// VolumeDetail resolves the disk number, partition number and
	// partition table style of a volume, best effort.
	VolumeDetail(ctx context.Context, letter rune) (VolumeDetail, error)
}

// ClientConfig is the configuration for the diskpart client.
type ClientConfig struct {
	// ToolPath is the diskpart executable. Defaults to "diskpart.exe"
	// (resolved through PATH).
	ToolPath string
	// Execer runs the tool. Defaults to the real process executor.
	Execer Execer
	// DriveExists reports whether a drive letter is taken; used when
	// assigning the new letter for a created partition. Defaults to a
	// filesystem probe.
	DriveExists func(letter rune) bool
	// ScratchDirs is the ordered candidate list for script files. The
	// first one that can be created wins. Defaults to the WinPE-safe
	// list (X:\Windows\Temp, X:\Temp, os.TempDir(), X:\).
	ScratchDirs []string
	Logger      log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.ToolPath == "" {
		c.ToolPath = "diskpart.exe"
	}
	if c.Execer == nil {
		c.Execer = NewExecer()
	}
	if c.DriveExists == nil {
		c.DriveExists = func(letter rune) bool {
			_, err := os.Stat(model.Root(letter))
			return err == nil
		}
	}
	if len(c.ScratchDirs) == 0 {
		c.ScratchDirs = defaultScratchDirs()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "diskpart.Client"})
	return nil
}

// Client is the real Partitioner implementation.
type Client struct {
	toolPath    string
	execer      Execer
	driveExists func(rune) bool
	scratchDirs []string
	logger      log.Logger
}

// NewClient creates a new diskpart client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		toolPath:    cfg.ToolPath,
		execer:      cfg.Execer,
		driveExists: cfg.DriveExists,
		scratchDirs: cfg.ScratchDirs,
		logger:      cfg.Logger,
	}, nil
}

var _ Partitioner = (*Client)(nil)

// run writes the script to the scratch directory, executes the tool against
// it and returns the decoded transcript.
func (c *Client) run(ctx context.Context, scriptName, script string) (string, error) {
	path, err := c.writeScript(scriptName, script)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	out, err := c.execer.Run(ctx, c.toolPath, "/s", path)
	transcript := decodeTranscript(out)
	if err != nil && transcript == "" {
		return "", fmt.Errorf("could not run %s: %s: %w", c.toolPath, err, model.ErrScriptFailed)
	}

	c.logger.Debugf("diskpart transcript for %s:\n%s", scriptName, transcript)

	return transcript, nil
}

// QueryShrinkMax runs `shrink querymax` and parses the localized reply.
func (c *Client) QueryShrinkMax(ctx context.Context, letter rune) (uint64, error) {
	script := fmt.Sprintf("select volume %c\nshrink querymax\n", letter)
	transcript, err := c.run(ctx, "dp_query_shrink.txt", script)
	if err != nil {
		return 0, err
	}

	mb := parseShrinkMax(transcript)
	c.logger.Debugf("volume %c: maximum shrinkable space %d MB", letter, mb)

	return mb, nil
}

// CreatePartition shrinks the source, creates, formats and assigns in one
// script so no half-applied intermediate state is visible to other processes.
func (c *Client) CreatePartition(ctx context.Context, source rune, sizeMB uint64) (rune, error) {
	newLetter, ok := c.nextFreeLetter()
	if !ok {
		return 0, fmt.Errorf("no free drive letter available: %w", model.ErrScriptFailed)
	}

	script := fmt.Sprintf(
		"select volume %c\n"+
			"shrink desired=%d\n"+
			"create partition primary\n"+
			"format fs=ntfs quick label=\"PEFORGE\"\n"+
			"assign letter=%c\n",
		source, sizeMB, newLetter)

	transcript, err := c.run(ctx, "dp_create.txt", script)
	if err != nil {
		return 0, err
	}

	if hasFailureKeyword(transcript) {
		return 0, fmt.Errorf("could not create partition from %c: %w: %s", source, model.ErrScriptFailed, lastNonEmptyLine(transcript))
	}

	c.logger.Infof("Created partition %c: (%d MB shrunk from %c:)", newLetter, sizeMB, source)

	return newLetter, nil
}

// DeletePartition removes a volume. The transcript is scanned fail-closed:
// no success keyword means failure.
func (c *Client) DeletePartition(ctx context.Context, letter rune) error {
	script := fmt.Sprintf("select volume %c\ndelete partition override\n", letter)
	transcript, err := c.run(ctx, "dp_delete.txt", script)
	if err != nil {
		return err
	}

	if !scriptSucceeded(transcript) {
		return fmt.Errorf("could not delete partition %c: %w: %s", letter, model.ErrScriptFailed, lastNonEmptyLine(transcript))
	}

	c.logger.Infof("Deleted partition %c:", letter)

	return nil
}

// FormatVolume quick-formats a volume as NTFS. The transcript is scanned
// fail-closed like a delete.
func (c *Client) FormatVolume(ctx context.Context, letter rune, label string) error {
	script := fmt.Sprintf("select volume %c\nformat fs=ntfs quick label=\"%s\"\n", letter, label)
	transcript, err := c.run(ctx, "dp_format.txt", script)
	if err != nil {
		return err
	}

	if !scriptSucceeded(transcript) {
		return fmt.Errorf("could not format volume %c: %w: %s", letter, model.ErrScriptFailed, lastNonEmptyLine(transcript))
	}

	c.logger.Infof("Formatted volume %c: (NTFS, label %q)", letter, label)

	return nil
}

// ExtendPartition extends a volume into the following unallocated space.
// When the volume-letter form fails without a definitive "no usable space"
// verdict, it retries through the disk/partition-number form, which works on
// volumes diskpart refuses to address by letter right after a rescan.
func (c *Client) ExtendPartition(ctx context.Context, letter rune) error {
	script := fmt.Sprintf("select volume %c\nextend\n", letter)
	transcript, err := c.run(ctx, "dp_extend.txt", script)
	if err != nil {
		return err
	}

	if scriptSucceeded(transcript) {
		c.logger.Infof("Extended partition %c:", letter)
		return nil
	}

	if hasNoUsableSpaceKeyword(transcript) {
		return fmt.Errorf("no usable adjacent space to extend %c: %w", letter, model.ErrScriptFailed)
	}

	// Fallback: address the volume by disk and partition number.
	detail, derr := c.VolumeDetail(ctx, letter)
	if derr != nil || detail.DiskNumber == nil || detail.PartitionNumber == nil {
		return fmt.Errorf("could not extend partition %c: %w: %s", letter, model.ErrScriptFailed, lastNonEmptyLine(transcript))
	}

	script = fmt.Sprintf("select disk %d\nselect partition %d\nextend\n", *detail.DiskNumber, *detail.PartitionNumber)
	transcript2, err := c.run(ctx, "dp_extend2.txt", script)
	if err != nil {
		return err
	}

	if !scriptSucceeded(transcript2) {
		return fmt.Errorf("could not extend partition %c: %w: %s", letter, model.ErrScriptFailed, lastNonEmptyLine(transcript2))
	}

	c.logger.Infof("Extended partition %c: (by disk/partition number)", letter)

	return nil
}

// Rescan re-reads the disk layout. The OS view can be stale right after a
// destructive script; callers rescan before trusting sizes again.
func (c *Client) Rescan(ctx context.Context) error {
	_, err := c.run(ctx, "dp_rescan.txt", "rescan\n")
	return err
}

// VolumeDetail resolves disk/partition numbers via `detail volume` and the
// disk's partition table style via `detail disk`.
func (c *Client) VolumeDetail(ctx context.Context, letter rune) (VolumeDetail, error) {
	script := fmt.Sprintf("select volume %c\ndetail volume\n", letter)
	transcript, err := c.run(ctx, "dp_detail_vol.txt", script)
	if err != nil {
		return VolumeDetail{}, err
	}

	detail := parseVolumeDetail(transcript)
	detail.Style = model.PartitionStyleUnknown

	if detail.DiskNumber != nil {
		script = fmt.Sprintf("select disk %d\ndetail disk\n", *detail.DiskNumber)
		diskTranscript, err := c.run(ctx, "dp_detail_disk.txt", script)
		if err == nil {
			detail.Style = parseDiskStyle(diskTranscript)
		}
	}

	return detail, nil
}

// nextFreeLetter picks a non-conflicting letter from the tail of the
// alphabet first so user-meaningful letters stay untouched, falling back to
// D: only when everything else is taken.
func (c *Client) nextFreeLetter() (rune, bool) {
	for letter := 'Z'; letter >= 'E'; letter-- {
		if !c.driveExists(letter) {
			return letter, true
		}
	}
	if !c.driveExists('D') {
		return 'D', true
	}
	return 0, false
}
