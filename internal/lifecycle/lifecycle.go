// Package lifecycle manages the staging data partition: finding or creating
// one before a run, and deleting it and giving the space back afterwards.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo"
)

const mbBytes = 1024 * 1024

// PartitionLister lists the fixed volumes of the system.
type PartitionLister interface {
	List(ctx context.Context) ([]model.Partition, error)
}

// CleanupResult is the outcome of a cleanup pass. Deletion and space
// reclamation are reported separately: the partition delete is the
// irreversible part, the extend that follows is best effort.
type CleanupResult struct {
	// Deleted is true when a marked staging partition was found and
	// removed.
	Deleted bool
	// DeletedLetter is the letter the removed partition was mounted at.
	DeletedLetter rune
	// SpaceReclaimed is true when the target volume was verified to have
	// grown after the extend.
	SpaceReclaimed bool
}

// ManagerConfig is the configuration of the partition lifecycle manager.
type ManagerConfig struct {
	Inventory   PartitionLister
	Partitioner diskpart.Partitioner
	System      sysinfo.System
	Logger      log.Logger

	// SystemDrive is the default OS drive letter, ranked last among
	// candidates unless RankBySpaceOnly is set. Defaults to 'C'.
	SystemDrive rune
	// RankBySpaceOnly disables the non-system-drive preference and ranks
	// candidates purely by free space.
	RankBySpaceOnly bool
	// BufferBytes is the headroom added on top of the required size when
	// creating a staging partition. Defaults to 10 GiB.
	BufferBytes uint64
	// PollInterval and PollTries bound the accessibility wait after a
	// partition create. Default 1s, 10 tries.
	PollInterval time.Duration
	PollTries    int
	// ExtendDelay and ExtendTries bound the extend retry budget during
	// cleanup. Default 3s, 10 tries.
	ExtendDelay time.Duration
	ExtendTries int
}

func (c *ManagerConfig) defaults() error {
	if c.Inventory == nil {
		return fmt.Errorf("partition lister is required")
	}
	if c.Partitioner == nil {
		return fmt.Errorf("partitioner is required")
	}
	if c.System == nil {
		return fmt.Errorf("system prober is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lifecycle.Manager"})

	if c.SystemDrive == 0 {
		c.SystemDrive = 'C'
	}
	if c.BufferBytes == 0 {
		c.BufferBytes = 10 * 1024 * mbBytes
	}
	if c.PollInterval == 0 {
		c.PollInterval = 1 * time.Second
	}
	if c.PollTries == 0 {
		c.PollTries = 10
	}
	if c.ExtendDelay == 0 {
		c.ExtendDelay = 3 * time.Second
	}
	if c.ExtendTries == 0 {
		c.ExtendTries = 10
	}

	return nil
}

// Manager is the partition lifecycle manager.
type Manager struct {
	inventory   PartitionLister
	partitioner diskpart.Partitioner
	system      sysinfo.System
	logger      log.Logger

	systemDrive     rune
	rankBySpaceOnly bool
	bufferBytes     uint64
	pollInterval    time.Duration
	pollTries       int
	extendDelay     time.Duration
	extendTries     int
}

// NewManager creates a new partition lifecycle manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		inventory:       cfg.Inventory,
		partitioner:     cfg.Partitioner,
		system:          cfg.System,
		logger:          cfg.Logger,
		systemDrive:     cfg.SystemDrive,
		rankBySpaceOnly: cfg.RankBySpaceOnly,
		bufferBytes:     cfg.BufferBytes,
		pollInterval:    cfg.PollInterval,
		pollTries:       cfg.PollTries,
		extendDelay:     cfg.ExtendDelay,
		extendTries:     cfg.ExtendTries,
	}, nil
}

// FindSuitableDataPartition returns a fixed volume with at least
// requiredBytes free, excluding the given letter and the maintenance
// environment drive. When no volume qualifies it shrinks the excluded volume
// itself, creates a marked staging partition in the freed space and returns
// its fresh letter with created=true.
func (m *Manager) FindSuitableDataPartition(ctx context.Context, exclude rune, requiredBytes uint64) (letter rune, created bool, err error) {
	parts, err := m.inventory.List(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("could not list partitions: %w", err)
	}

	if best, ok := m.pickCandidate(parts, exclude, requiredBytes); ok {
		m.logger.Infof("Using existing partition %c: (%d MB free)", best.Letter, best.FreeMB)
		return best.Letter, false, nil
	}

	letter, err = m.createStagingPartition(ctx, exclude, requiredBytes)
	if err != nil {
		return 0, false, err
	}

	return letter, true, nil
}

// pickCandidate filters and ranks the existing volumes. Non-system drives
// rank above the system drive unless ranking is space-only; ties break by
// free space, largest first.
func (m *Manager) pickCandidate(parts []model.Partition, exclude rune, requiredBytes uint64) (model.Partition, bool) {
	var best model.Partition
	var found bool

	better := func(a, b model.Partition) bool {
		if !m.rankBySpaceOnly {
			aSys := a.Letter == m.systemDrive
			bSys := b.Letter == m.systemDrive
			if aSys != bSys {
				return !aSys
			}
		}
		return a.FreeMB > b.FreeMB
	}

	for _, p := range parts {
		if p.Letter == exclude || p.IsBootEnvironment {
			continue
		}
		if p.FreeMB*mbBytes < requiredBytes {
			continue
		}
		if !found || better(p, best) {
			best = p
			found = true
		}
	}

	return best, found
}

func (m *Manager) createStagingPartition(ctx context.Context, source rune, requiredBytes uint64) (rune, error) {
	shrinkMaxMB, err := m.partitioner.QueryShrinkMax(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("could not query shrinkable space of %c: %w", source, err)
	}

	sizeMB, err := stagingSizeMB(requiredBytes, m.bufferBytes, shrinkMaxMB)
	if err != nil {
		return 0, fmt.Errorf("volume %c can free at most %d MB: %w", source, shrinkMaxMB, err)
	}

	m.logger.Infof("No suitable partition found, shrinking %c: by %d MB", source, sizeMB)

	letter, err := m.partitioner.CreatePartition(ctx, source, sizeMB)
	if err != nil {
		return 0, fmt.Errorf("could not create staging partition: %w", err)
	}

	if err := m.waitAccessible(ctx, letter); err != nil {
		return 0, fmt.Errorf("created partition %c never became accessible: %w", letter, err)
	}

	marker := model.Marker{CreatedAt: time.Now(), SourceLetter: source, SizeMB: sizeMB}
	if err := m.system.WriteHidden(model.MarkerPath(letter), []byte(marker.Render())); err != nil {
		// The partition is usable without the marker, it just won't be
		// reclaimed automatically later.
		m.logger.Warningf("could not write marker to %c: %s", letter, err)
	}

	return letter, nil
}

// stagingSizeMB computes the size of the staging partition in MB: the
// required size plus buffer rounded up to a whole GiB when the budget
// covers it, otherwise the largest whole GiB that still meets the
// requirement, otherwise the raw budget. Sizes under 1 GiB are refused.
func stagingSizeMB(requiredBytes, bufferBytes, shrinkMaxMB uint64) (uint64, error) {
	requiredMB := ceilDiv(requiredBytes, mbBytes)
	if shrinkMaxMB < requiredMB {
		return 0, fmt.Errorf("%d MB required: free more space on the source volume or pick another target: %w", requiredMB, model.ErrShrinkTooSmall)
	}

	const gibMB = 1024

	sizeMB := ceilDiv(requiredMB+ceilDiv(bufferBytes, mbBytes), gibMB) * gibMB
	if sizeMB > shrinkMaxMB {
		if whole := (shrinkMaxMB / gibMB) * gibMB; whole >= requiredMB {
			sizeMB = whole
		} else {
			sizeMB = shrinkMaxMB
		}
	}

	if sizeMB < gibMB {
		return 0, fmt.Errorf("staging partition would be under 1 GiB: %w", model.ErrShrinkTooSmall)
	}

	return sizeMB, nil
}

func ceilDiv(n, d uint64) uint64 { return (n + d - 1) / d }

// waitAccessible polls for the new letter to be mounted and readable. Right
// after a create the OS may not have mounted the volume yet.
func (m *Manager) waitAccessible(ctx context.Context, letter rune) error {
	check := func() error {
		if !m.system.DriveExists(letter) {
			return fmt.Errorf("drive %c not mounted yet", letter)
		}
		if _, err := m.system.Space(letter); err != nil {
			return fmt.Errorf("drive %c not readable yet: %w", letter, err)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(m.pollInterval), uint64(m.pollTries-1)), ctx)
	return backoff.Retry(check, bo)
}

// CleanupAndExtend scans for a marked staging partition, deletes it and
// tries to give the freed space back to the target volume.
//
// Extension only runs when the staging partition is known to sit immediately
// after the target on the same disk; any doubt about relative position
// downgrades the pass to delete-only. Extend retry exhaustion is a warning,
// not an error: the irreversible part already happened.
func (m *Manager) CleanupAndExtend(ctx context.Context, target rune) (CleanupResult, error) {
	marked, ok := m.findMarked()
	if !ok {
		m.logger.Debugf("no staging partition marker found, nothing to clean up")
		return CleanupResult{}, nil
	}

	m.logger.Infof("Found staging partition marker on %c:", marked)

	extendable := m.isImmediatelyAfter(ctx, marked, target)

	if err := m.partitioner.DeletePartition(ctx, marked); err != nil {
		return CleanupResult{}, fmt.Errorf("could not delete staging partition %c: %w", marked, err)
	}
	if err := m.partitioner.Rescan(ctx); err != nil {
		m.logger.Warningf("rescan after delete failed: %s", err)
	}

	res := CleanupResult{Deleted: true, DeletedLetter: marked}

	if !extendable {
		m.logger.Warningf("staging partition %c: not immediately after %c: on the same disk, space not given back", marked, target)
		return res, nil
	}

	if err := m.extendVerified(ctx, target); err != nil {
		m.logger.Warningf("could not give reclaimed space back to %c: %s", target, err)
		return res, nil
	}

	res.SpaceReclaimed = true
	m.logger.Infof("Reclaimed staging space into %c:", target)

	return res, nil
}

// findMarked scans the mounted fixed volumes for the staging marker file,
// skipping the maintenance environment drive.
func (m *Manager) findMarked() (rune, bool) {
	boot := m.system.BootDrive()
	for letter := 'A'; letter <= 'Z'; letter++ {
		if letter == boot {
			continue
		}
		if !m.system.DriveExists(letter) || !m.system.IsFixedDrive(letter) {
			continue
		}
		if m.system.FileExists(model.MarkerPath(letter)) {
			return letter, true
		}
	}
	return 0, false
}

// isImmediatelyAfter reports whether the marked volume is known to be the
// partition right after the target on the same disk. Unresolved numbers
// count as "no": extend without that knowledge can eat someone else's space.
func (m *Manager) isImmediatelyAfter(ctx context.Context, marked, target rune) bool {
	markedDetail, err := m.partitioner.VolumeDetail(ctx, marked)
	if err != nil || markedDetail.DiskNumber == nil || markedDetail.PartitionNumber == nil {
		m.logger.Warningf("could not resolve position of %c:, skipping extend", marked)
		return false
	}
	targetDetail, err := m.partitioner.VolumeDetail(ctx, target)
	if err != nil || targetDetail.DiskNumber == nil || targetDetail.PartitionNumber == nil {
		m.logger.Warningf("could not resolve position of %c:, skipping extend", target)
		return false
	}

	if *markedDetail.DiskNumber != *targetDetail.DiskNumber {
		m.logger.Warningf("%c: and %c: are on different disks, skipping extend: %s", marked, target, model.ErrDiskMismatch)
		return false
	}

	return *markedDetail.PartitionNumber == *targetDetail.PartitionNumber+1
}

// extendVerified retries the extend until the target volume is measured to
// have actually grown. A script success without measured growth is a soft
// failure: the OS view may still be stale, so it rescans and tries again.
func (m *Manager) extendVerified(ctx context.Context, target rune) error {
	before, err := m.system.Space(target)
	if err != nil {
		return fmt.Errorf("could not measure %c before extend: %w", target, err)
	}

	failures := 0
	attempt := func() error {
		err := m.partitioner.ExtendPartition(ctx, target)
		if err == nil {
			after, serr := m.system.Space(target)
			if serr == nil && after.TotalBytes > before.TotalBytes {
				return nil
			}
			err = fmt.Errorf("volume %c did not grow: %w", target, model.ErrExtendNotVerified)
		}

		failures++
		if failures%3 == 0 {
			if rerr := m.partitioner.Rescan(ctx); rerr != nil {
				m.logger.Debugf("rescan during extend retry failed: %s", rerr)
			}
		}

		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(m.extendDelay), uint64(m.extendTries-1)), ctx)
	return backoff.Retry(attempt, bo)
}
