package lifecycle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/diskpart/diskpartmock"
	"github.com/peforge/peforge/internal/lifecycle"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo/sysinfofake"
)

const gib = uint64(1024 * 1024 * 1024)

type staticLister []model.Partition

func (l staticLister) List(_ context.Context) ([]model.Partition, error) { return l, nil }

func newManager(t *testing.T, cfg lifecycle.ManagerConfig) *lifecycle.Manager {
	t.Helper()

	// Keep retry budgets fast unless a test overrides them.
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.ExtendDelay == 0 {
		cfg.ExtendDelay = time.Millisecond
	}

	m, err := lifecycle.NewManager(cfg)
	require.NoError(t, err)
	return m
}

func TestFindSuitableDataPartitionExisting(t *testing.T) {
	tests := map[string]struct {
		parts     []model.Partition
		cfg       lifecycle.ManagerConfig
		exclude   rune
		required  uint64
		expLetter rune
	}{
		"A partition with enough free space should be picked without creating anything.": {
			parts: []model.Partition{
				{Letter: 'D', FreeMB: 100 * 1024},
			},
			exclude:   'C',
			required:  20 * gib,
			expLetter: 'D',
		},

		"A non-system-drive candidate should beat the system drive even with less free space.": {
			parts: []model.Partition{
				{Letter: 'C', FreeMB: 200 * 1024},
				{Letter: 'D', FreeMB: 50 * 1024},
			},
			exclude:   'E',
			required:  20 * gib,
			expLetter: 'D',
		},

		"With space-only ranking the biggest candidate should win.": {
			parts: []model.Partition{
				{Letter: 'C', FreeMB: 200 * 1024},
				{Letter: 'D', FreeMB: 50 * 1024},
			},
			cfg:       lifecycle.ManagerConfig{RankBySpaceOnly: true},
			exclude:   'E',
			required:  20 * gib,
			expLetter: 'C',
		},

		"Ties should break by free space, largest first.": {
			parts: []model.Partition{
				{Letter: 'D', FreeMB: 50 * 1024},
				{Letter: 'E', FreeMB: 80 * 1024},
			},
			exclude:   'C',
			required:  20 * gib,
			expLetter: 'E',
		},

		"The maintenance environment volume should never be picked.": {
			parts: []model.Partition{
				{Letter: 'X', FreeMB: 500 * 1024, IsBootEnvironment: true},
				{Letter: 'D', FreeMB: 50 * 1024},
			},
			exclude:   'C',
			required:  20 * gib,
			expLetter: 'D',
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			cfg := test.cfg
			cfg.Inventory = staticLister(test.parts)
			cfg.Partitioner = diskpartmock.NewMockPartitioner(t)
			cfg.System = sysinfofake.NewSystem('X')
			manager := newManager(t, cfg)

			letter, created, err := manager.FindSuitableDataPartition(context.TODO(), test.exclude, test.required)

			require.NoError(t, err)
			assert.Equal(test.expLetter, letter)
			assert.False(created)
		})
	}
}

func TestFindSuitableDataPartitionCreate(t *testing.T) {
	tests := map[string]struct {
		required    uint64
		shrinkMaxMB uint64
		expSizeMB   uint64
		expErr      error
	}{
		"With plenty of headroom the size should be required plus 10 GiB, whole GiB.": {
			required:    20 * gib,
			shrinkMaxMB: 100 * 1024,
			expSizeMB:   30 * 1024,
		},

		"With limited headroom the size should be the largest whole GiB meeting the requirement.": {
			required:    20 * gib,
			shrinkMaxMB: 25*1024 + 300,
			expSizeMB:   25 * 1024,
		},

		"When no whole GiB meets the requirement the raw budget should be used.": {
			required:    20*gib + 300*1024*1024,
			shrinkMaxMB: 20*1024 + 400,
			expSizeMB:   20*1024 + 400,
		},

		"A non-GiB-aligned requirement should round the buffered size up to a whole GiB.": {
			required:    20*gib + 1,
			shrinkMaxMB: 100 * 1024,
			expSizeMB:   31 * 1024,
		},

		"A shrink budget under the requirement should fail and create nothing.": {
			required:    20 * gib,
			shrinkMaxMB: 10 * 1024,
			expErr:      model.ErrShrinkTooSmall,
		},

		"A sub-GiB result should be refused.": {
			required:    100 * 1024 * 1024,
			shrinkMaxMB: 500,
			expErr:      model.ErrShrinkTooSmall,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			system := sysinfofake.NewSystem('X')
			system.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 500 * gib, FreeBytes: 100 * gib})

			mp := diskpartmock.NewMockPartitioner(t)
			mp.On("QueryShrinkMax", mock.Anything, 'C').Once().Return(test.shrinkMaxMB, nil)
			if test.expErr == nil {
				mp.On("CreatePartition", mock.Anything, 'C', test.expSizeMB).Once().
					Run(func(_ mock.Arguments) {
						system.SetVolume('Z', sysinfofake.Volume{Fixed: true, TotalBytes: test.expSizeMB * 1024 * 1024, FreeBytes: test.expSizeMB * 1024 * 1024})
					}).
					Return('Z', nil)
			}

			manager := newManager(t, lifecycle.ManagerConfig{
				Inventory:   staticLister(nil),
				Partitioner: mp,
				System:      system,
			})

			letter, created, err := manager.FindSuitableDataPartition(context.TODO(), 'C', test.required)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal('Z', letter)
			assert.True(created)
			assert.True(system.HasHidden(model.MarkerPath('Z')), "marker file should be written to the new partition root")
		})
	}
}

func TestFindSuitableDataPartitionCreateNotAccessible(t *testing.T) {
	assert := assert.New(t)

	// The created partition never shows up as a mounted volume.
	system := sysinfofake.NewSystem('X')
	mp := diskpartmock.NewMockPartitioner(t)
	mp.On("QueryShrinkMax", mock.Anything, 'C').Once().Return(uint64(100*1024), nil)
	mp.On("CreatePartition", mock.Anything, 'C', mock.Anything).Once().Return('Z', nil)

	manager := newManager(t, lifecycle.ManagerConfig{
		Inventory:   staticLister(nil),
		Partitioner: mp,
		System:      system,
		PollTries:   2,
	})

	_, _, err := manager.FindSuitableDataPartition(context.TODO(), 'C', 20*gib)

	assert.Error(err)
	assert.False(system.HasHidden(model.MarkerPath('Z')))
}

func intPtr(n int) *int { return &n }

// markedSystem mounts a target volume on C and a marked staging volume on Z.
func markedSystem() *sysinfofake.System {
	s := sysinfofake.NewSystem('X')
	s.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 400 * gib, FreeBytes: 100 * gib})
	s.SetVolume('Z', sysinfofake.Volume{Fixed: true, TotalBytes: 30 * gib, FreeBytes: 30 * gib})
	_ = s.WriteHidden(model.MarkerPath('Z'), []byte("marker"))
	return s
}

func TestCleanupAndExtendNoMarker(t *testing.T) {
	assert := assert.New(t)

	system := sysinfofake.NewSystem('X')
	system.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 400 * gib, FreeBytes: 100 * gib})

	manager := newManager(t, lifecycle.ManagerConfig{
		Inventory:   staticLister(nil),
		Partitioner: diskpartmock.NewMockPartitioner(t),
		System:      system,
	})

	res, err := manager.CleanupAndExtend(context.TODO(), 'C')

	require.NoError(t, err)
	assert.False(res.Deleted)
	assert.False(res.SpaceReclaimed)
}

func TestCleanupAndExtendAdjacent(t *testing.T) {
	assert := assert.New(t)

	system := markedSystem()

	mp := diskpartmock.NewMockPartitioner(t)
	mp.On("VolumeDetail", mock.Anything, 'Z').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(4)}, nil)
	mp.On("VolumeDetail", mock.Anything, 'C').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)}, nil)
	mp.On("DeletePartition", mock.Anything, 'Z').Once().
		Run(func(_ mock.Arguments) { system.RemoveVolume('Z') }).
		Return(nil)
	mp.On("Rescan", mock.Anything).Return(nil)
	mp.On("ExtendPartition", mock.Anything, 'C').Once().
		Run(func(_ mock.Arguments) {
			system.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: 430 * gib, FreeBytes: 130 * gib})
		}).
		Return(nil)

	manager := newManager(t, lifecycle.ManagerConfig{
		Inventory:   staticLister(nil),
		Partitioner: mp,
		System:      system,
	})

	res, err := manager.CleanupAndExtend(context.TODO(), 'C')

	require.NoError(t, err)
	assert.True(res.Deleted)
	assert.Equal('Z', res.DeletedLetter)
	assert.True(res.SpaceReclaimed)
}

func TestCleanupAndExtendDeleteOnly(t *testing.T) {
	tests := map[string]struct {
		markedDetail diskpart.VolumeDetail
		targetDetail diskpart.VolumeDetail
		detailErr    error
	}{
		"A marker on a different disk should delete without extending.": {
			markedDetail: diskpart.VolumeDetail{DiskNumber: intPtr(1), PartitionNumber: intPtr(4)},
			targetDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)},
		},

		"A non-adjacent marker partition should delete without extending.": {
			markedDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(6)},
			targetDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)},
		},

		"A marker partition before the target should delete without extending.": {
			markedDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(2)},
			targetDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)},
		},

		"An unresolved marker disk number should delete without extending.": {
			markedDetail: diskpart.VolumeDetail{PartitionNumber: intPtr(4)},
			targetDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)},
		},

		"An unresolved target partition number should delete without extending.": {
			markedDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(4)},
			targetDetail: diskpart.VolumeDetail{DiskNumber: intPtr(0)},
		},

		"A failing position resolution should delete without extending.": {
			detailErr: fmt.Errorf("whatever"),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			system := markedSystem()

			mp := diskpartmock.NewMockPartitioner(t)
			if test.detailErr != nil {
				mp.On("VolumeDetail", mock.Anything, 'Z').Once().Return(diskpart.VolumeDetail{}, test.detailErr)
			} else {
				mp.On("VolumeDetail", mock.Anything, 'Z').Once().Return(test.markedDetail, nil)
				mp.On("VolumeDetail", mock.Anything, 'C').Once().Return(test.targetDetail, nil)
			}
			mp.On("DeletePartition", mock.Anything, 'Z').Once().
				Run(func(_ mock.Arguments) { system.RemoveVolume('Z') }).
				Return(nil)
			mp.On("Rescan", mock.Anything).Once().Return(nil)

			manager := newManager(t, lifecycle.ManagerConfig{
				Inventory:   staticLister(nil),
				Partitioner: mp,
				System:      system,
			})

			res, err := manager.CleanupAndExtend(context.TODO(), 'C')

			require.NoError(t, err)
			assert.True(res.Deleted)
			assert.False(res.SpaceReclaimed)
			mp.AssertNotCalled(t, "ExtendPartition", mock.Anything, mock.Anything)
		})
	}
}

func TestCleanupAndExtendRetryExhaustion(t *testing.T) {
	assert := assert.New(t)

	system := markedSystem()

	// Extend keeps "succeeding" without the volume ever growing.
	mp := diskpartmock.NewMockPartitioner(t)
	mp.On("VolumeDetail", mock.Anything, 'Z').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(4)}, nil)
	mp.On("VolumeDetail", mock.Anything, 'C').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)}, nil)
	mp.On("DeletePartition", mock.Anything, 'Z').Once().
		Run(func(_ mock.Arguments) { system.RemoveVolume('Z') }).
		Return(nil)
	mp.On("Rescan", mock.Anything).Return(nil)
	mp.On("ExtendPartition", mock.Anything, 'C').Return(nil)

	manager := newManager(t, lifecycle.ManagerConfig{
		Inventory:   staticLister(nil),
		Partitioner: mp,
		System:      system,
		ExtendTries: 4,
	})

	res, err := manager.CleanupAndExtend(context.TODO(), 'C')

	require.NoError(t, err, "retry exhaustion is not an error for the caller")
	assert.True(res.Deleted)
	assert.False(res.SpaceReclaimed)
	mp.AssertNumberOfCalls(t, "ExtendPartition", 4)
	// One rescan after the delete plus one every third failed extend.
	mp.AssertNumberOfCalls(t, "Rescan", 2)
}

func TestCleanupAndExtendDeleteFailure(t *testing.T) {
	assert := assert.New(t)

	system := markedSystem()

	mp := diskpartmock.NewMockPartitioner(t)
	mp.On("VolumeDetail", mock.Anything, 'Z').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(4)}, nil)
	mp.On("VolumeDetail", mock.Anything, 'C').Once().Return(diskpart.VolumeDetail{DiskNumber: intPtr(0), PartitionNumber: intPtr(3)}, nil)
	mp.On("DeletePartition", mock.Anything, 'Z').Once().Return(fmt.Errorf("access denied"))

	manager := newManager(t, lifecycle.ManagerConfig{
		Inventory:   staticLister(nil),
		Partitioner: mp,
		System:      system,
	})

	res, err := manager.CleanupAndExtend(context.TODO(), 'C')

	assert.Error(err)
	assert.False(res.Deleted)
}
