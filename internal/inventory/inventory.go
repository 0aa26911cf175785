// Package inventory enumerates the fixed volumes visible to the running
// system as drive letters.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo"
)

// ScannerConfig is the configuration of the volume scanner.
type ScannerConfig struct {
	System      sysinfo.System
	Partitioner diskpart.Partitioner
	Logger      log.Logger
}

func (c *ScannerConfig) defaults() error {
	if c.System == nil {
		return fmt.Errorf("system prober is required")
	}
	if c.Partitioner == nil {
		return fmt.Errorf("partitioner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "inventory.Scanner"})

	return nil
}

// Scanner lists mounted fixed volumes.
type Scanner struct {
	system      sysinfo.System
	partitioner diskpart.Partitioner
	logger      log.Logger
}

// NewScanner creates a new volume scanner.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scanner{
		system:      cfg.System,
		partitioner: cfg.Partitioner,
		logger:      cfg.Logger,
	}, nil
}

// List walks the drive letters A to Z and returns every fixed volume it can
// read, in letter order. Letters that are missing, optical or unreadable are
// skipped silently so one broken volume never hides the rest.
func (s *Scanner) List(ctx context.Context) ([]model.Partition, error) {
	var parts []model.Partition

	for letter := 'A'; letter <= 'Z'; letter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.system.DriveExists(letter) || !s.system.IsFixedDrive(letter) {
			continue
		}
		// Mounted install media can report as a fixed drive on some WinPE
		// builds, so optical drives are filtered on their own.
		if s.system.IsCDROM(letter) {
			continue
		}

		space, err := s.system.Space(letter)
		if err != nil {
			s.logger.Debugf("skipping volume %c: %s", letter, err)
			continue
		}

		parts = append(parts, model.Partition{
			Letter:            letter,
			TotalMB:           space.TotalBytes / (1024 * 1024),
			FreeMB:            space.FreeBytes / (1024 * 1024),
			Label:             s.system.VolumeLabel(letter),
			Style:             model.PartitionStyleUnknown,
			IsBootEnvironment: letter == s.system.BootDrive(),
			HasWindows:        s.system.HasWindowsLayout(letter),
		})
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Letter < parts[j].Letter })

	s.logger.Debugf("found %d fixed volumes", len(parts))

	return parts, nil
}

// Describe enriches a partition with its disk number, partition number and
// partition table style. Resolution is best effort and may leave the numbers
// nil.
func (s *Scanner) Describe(ctx context.Context, part model.Partition) (model.Partition, error) {
	detail, err := s.partitioner.VolumeDetail(ctx, part.Letter)
	if err != nil {
		return part, fmt.Errorf("could not resolve volume %c position: %w", part.Letter, err)
	}

	part.DiskNumber = detail.DiskNumber
	part.PartitionNumber = detail.PartitionNumber
	part.Style = detail.Style

	return part, nil
}
