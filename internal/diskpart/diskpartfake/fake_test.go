package diskpartfake_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/diskpart/diskpartfake"
	"github.com/peforge/peforge/internal/inventory"
	"github.com/peforge/peforge/internal/lifecycle"
	"github.com/peforge/peforge/internal/sysinfo/sysinfofake"
)

const gib = uint64(1024) * 1024 * 1024

func newManager(t *testing.T, sys *sysinfofake.System, parts *diskpartfake.Partitioner) *lifecycle.Manager {
	scanner, err := inventory.NewScanner(inventory.ScannerConfig{
		System:      sys,
		Partitioner: parts,
	})
	require.NoError(t, err)

	manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
		Inventory:    scanner,
		Partitioner:  parts,
		System:       sys,
		PollInterval: time.Millisecond,
		ExtendDelay:  time.Millisecond,
	})
	require.NoError(t, err)

	return manager
}

func TestStagingRoundTrip(t *testing.T) {
	assert := assert.New(t)

	// Single-disk machine: the source volume is the only candidate, so
	// the staging partition has to be carved out of it.
	sys := sysinfofake.NewSystem('X')
	sys.SetVolume('C', sysinfofake.Volume{
		Fixed:      true,
		TotalBytes: 200 * gib,
		FreeBytes:  170 * gib,
		Label:      "Windows",
		HasWindows: true,
	})

	parts := diskpartfake.NewPartitioner(sys)
	manager := newManager(t, sys, parts)

	letter, created, err := manager.FindSuitableDataPartition(context.TODO(), 'C', 20*gib)
	require.NoError(t, err)
	require.True(t, created)

	// Shrinking must not strip the source volume's identity.
	assert.Equal("Windows", sys.VolumeLabel('C'))
	assert.True(sys.HasWindowsLayout('C'))

	// The created volume sits right after the source on the fake disk.
	sourceDetail, err := parts.VolumeDetail(context.TODO(), 'C')
	require.NoError(t, err)
	createdDetail, err := parts.VolumeDetail(context.TODO(), letter)
	require.NoError(t, err)
	require.NotNil(t, sourceDetail.PartitionNumber)
	require.NotNil(t, createdDetail.PartitionNumber)
	assert.Equal(*sourceDetail.PartitionNumber+1, *createdDetail.PartitionNumber)

	shrunk, err := sys.Space('C')
	require.NoError(t, err)
	assert.Less(shrunk.TotalBytes, 200*gib)

	res, err := manager.CleanupAndExtend(context.TODO(), 'C')
	require.NoError(t, err)

	assert.True(res.Deleted)
	assert.Equal(letter, res.DeletedLetter)
	assert.True(res.SpaceReclaimed)
	assert.False(sys.DriveExists(letter))

	// The target must be measured to have grown back.
	extended, err := sys.Space('C')
	require.NoError(t, err)
	assert.Greater(extended.TotalBytes, shrunk.TotalBytes)
}

func TestVolumeDetailNumbering(t *testing.T) {
	assert := assert.New(t)

	sys := sysinfofake.NewSystem('X')
	sys.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 100 * gib, FreeBytes: 60 * gib})
	sys.SetVolume('D', sysinfofake.Volume{Fixed: true, TotalBytes: 100 * gib, FreeBytes: 90 * gib})

	parts := diskpartfake.NewPartitioner(sys)

	// Pre-seeded volumes number in mount order.
	cDetail, err := parts.VolumeDetail(context.TODO(), 'C')
	require.NoError(t, err)
	dDetail, err := parts.VolumeDetail(context.TODO(), 'D')
	require.NoError(t, err)
	require.NotNil(t, cDetail.PartitionNumber)
	require.NotNil(t, dDetail.PartitionNumber)
	assert.Equal(1, *cDetail.PartitionNumber)
	assert.Equal(2, *dDetail.PartitionNumber)

	// A partition created off D follows D, not the alphabet.
	letter, err := parts.CreatePartition(context.TODO(), 'D', 10*1024)
	require.NoError(t, err)
	detail, err := parts.VolumeDetail(context.TODO(), letter)
	require.NoError(t, err)
	require.NotNil(t, detail.PartitionNumber)
	assert.Equal(3, *detail.PartitionNumber)

	// Unmounted letters resolve to nothing.
	require.NoError(t, parts.DeletePartition(context.TODO(), letter))
	gone, err := parts.VolumeDetail(context.TODO(), letter)
	require.NoError(t, err)
	assert.Nil(gone.PartitionNumber)
}
