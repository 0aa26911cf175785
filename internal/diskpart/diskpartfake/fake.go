// Package diskpartfake provides an in-memory Partitioner for tests and dry
// runs. It mutates an attached sysinfofake.System so the lifecycle manager
// sees created and deleted volumes appear and disappear.
package diskpartfake

import (
	"context"
	"fmt"
	"sync"

	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo/sysinfofake"
)

// Partitioner is a fake implementation of diskpart.Partitioner. All volumes
// live on a single fake disk 0.
type Partitioner struct {
	mu sync.Mutex

	sys *sysinfofake.System
	// partitions maps mounted letters to their partition number on the
	// fake disk. Volumes never created through the fake get a number
	// derived from their letter on first lookup.
	partitions map[rune]int
}

// NewPartitioner creates a fake partitioner bound to a fake system.
func NewPartitioner(sys *sysinfofake.System) *Partitioner {
	return &Partitioner{sys: sys, partitions: map[rune]int{}}
}

var _ diskpart.Partitioner = (*Partitioner)(nil)

func (p *Partitioner) QueryShrinkMax(_ context.Context, letter rune) (uint64, error) {
	space, err := p.sys.Space(letter)
	if err != nil {
		return 0, err
	}
	// Everything free is shrinkable on the fake disk.
	return space.FreeBytes / (1024 * 1024), nil
}

func (p *Partitioner) CreatePartition(_ context.Context, source rune, sizeMB uint64) (rune, error) {
	space, err := p.sys.Space(source)
	if err != nil {
		return 0, err
	}
	sizeBytes := sizeMB * 1024 * 1024
	if sizeBytes > space.FreeBytes {
		return 0, fmt.Errorf("not enough free space on %c to shrink %d MiB", source, sizeMB)
	}

	p.sys.SetVolume(source, sysinfofake.Volume{
		Fixed:      true,
		FreeBytes:  space.FreeBytes - sizeBytes,
		TotalBytes: space.TotalBytes - sizeBytes,
		Label:      p.sys.VolumeLabel(source),
		HasWindows: p.sys.HasWindowsLayout(source),
	})

	letter := p.freeLetter()
	if letter == 0 {
		return 0, fmt.Errorf("no drive letter available")
	}
	p.sys.SetVolume(letter, sysinfofake.Volume{
		Fixed:      true,
		FreeBytes:  sizeBytes,
		TotalBytes: sizeBytes,
		Label:      "PEFORGE",
	})

	// The new partition sits in the space shrunk off the source, so it is
	// the one right after it on the fake disk.
	p.mu.Lock()
	p.partitions[letter] = p.partitionNumber(source) + 1
	p.mu.Unlock()

	return letter, nil
}

func (p *Partitioner) DeletePartition(_ context.Context, letter rune) error {
	if !p.sys.DriveExists(letter) {
		return fmt.Errorf("volume %c not found", letter)
	}
	p.sys.RemoveVolume(letter)

	p.mu.Lock()
	delete(p.partitions, letter)
	p.mu.Unlock()

	return nil
}

func (p *Partitioner) FormatVolume(_ context.Context, letter rune, label string) error {
	space, err := p.sys.Space(letter)
	if err != nil {
		return err
	}
	p.sys.SetVolume(letter, sysinfofake.Volume{
		Fixed:      true,
		FreeBytes:  space.TotalBytes,
		TotalBytes: space.TotalBytes,
		Label:      label,
	})
	return nil
}

func (p *Partitioner) ExtendPartition(_ context.Context, letter rune) error {
	space, err := p.sys.Space(letter)
	if err != nil {
		return err
	}
	// Pretend some trailing unallocated space was absorbed.
	const grow = 1024 * 1024 * 1024
	p.sys.SetVolume(letter, sysinfofake.Volume{
		Fixed:      true,
		FreeBytes:  space.FreeBytes + grow,
		TotalBytes: space.TotalBytes + grow,
		Label:      p.sys.VolumeLabel(letter),
		HasWindows: p.sys.HasWindowsLayout(letter),
	})
	return nil
}

func (p *Partitioner) Rescan(_ context.Context) error { return nil }

func (p *Partitioner) VolumeDetail(_ context.Context, letter rune) (diskpart.VolumeDetail, error) {
	if !p.sys.DriveExists(letter) {
		return diskpart.VolumeDetail{}, nil
	}

	p.mu.Lock()
	part := p.partitionNumber(letter)
	p.mu.Unlock()

	disk := 0
	return diskpart.VolumeDetail{
		DiskNumber:      &disk,
		PartitionNumber: &part,
		Style:           model.PartitionStyleGPT,
	}, nil
}

// freeLetter picks a non-conflicting letter from the tail of the alphabet
// first, falling back to D: only when everything else is taken, mirroring the
// real client's nextFreeLetter. It returns 0 when no letter is free.
func (p *Partitioner) freeLetter() rune {
	for letter := 'Z'; letter >= 'E'; letter-- {
		if !p.sys.DriveExists(letter) {
			return letter
		}
	}
	if !p.sys.DriveExists('D') {
		return 'D'
	}
	return 0
}

// partitionNumber resolves and memoizes the partition number of a letter.
// Must be called with the mutex held.
func (p *Partitioner) partitionNumber(letter rune) int {
	if part, ok := p.partitions[letter]; ok {
		return part
	}

	// Pre-seeded volumes map to partition numbers in mount order: C is
	// partition 1, D is 2, and so on.
	part := int(letter-'C') + 1
	if part < 1 {
		part = 1
	}
	p.partitions[letter] = part

	return part
}
