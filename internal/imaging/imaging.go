// Package imaging abstracts the Windows image engine used to apply and
// capture WIM/ESD/SWM images.
package imaging

import (
	"context"

	"github.com/peforge/peforge/internal/model"
)

// Sink receives coarse progress updates from a running engine operation.
// Percent is 0 to 100; status is free text describing the phase. Calls may
// arrive at any rate and must not block for long.
type Sink func(percent int, status string)

// ApplyOptions are the parameters of an image apply.
type ApplyOptions struct {
	// ImagePath is the image file to apply.
	ImagePath string
	// TargetRoot is the root of the formatted target volume (e.g. "C:\").
	TargetRoot string
	// VolumeIndex is the 1-based image index to apply.
	VolumeIndex int
	// Progress receives updates, may be nil.
	Progress Sink
}

// CaptureOptions are the parameters of an image capture.
type CaptureOptions struct {
	// SourceRoot is the root of the volume to capture.
	SourceRoot string
	// ImagePath is the image file to create or append to.
	ImagePath string
	// Name and Description label the captured volume image.
	Name        string
	Description string
	// Format selects the on-disk image format.
	Format model.ImageFormat
	// SplitSizeMB splits the image into chunks of this size when the
	// format is SWM. 0 means no split.
	SplitSizeMB int
	// Incremental appends to an existing image instead of creating one.
	Incremental bool
	// Progress receives updates, may be nil.
	Progress Sink
}

// Engine is the image apply/capture contract.
type Engine interface {
	Apply(ctx context.Context, opts ApplyOptions) error
	Capture(ctx context.Context, opts CaptureOptions) error
	// AddDrivers injects every driver found under driverDir into the
	// offline image mounted at targetRoot.
	AddDrivers(ctx context.Context, targetRoot, driverDir string) error
	// ExportDrivers saves the third-party drivers of the offline image
	// at sourceRoot into destDir.
	ExportDrivers(ctx context.Context, sourceRoot, destDir string) error
}
