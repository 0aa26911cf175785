package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/diskpart"
	"github.com/peforge/peforge/internal/diskpart/diskpartmock"
	"github.com/peforge/peforge/internal/inventory"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/sysinfo/sysinfofake"
)

func TestScannerList(t *testing.T) {
	gb := func(n uint64) uint64 { return n * 1024 * 1024 * 1024 }

	tests := map[string]struct {
		system func() *sysinfofake.System
		expect func(t *testing.T, parts []model.Partition)
	}{
		"Fixed volumes should be listed in letter order with sizes in MB.": {
			system: func() *sysinfofake.System {
				s := sysinfofake.NewSystem('X')
				s.SetVolume('D', sysinfofake.Volume{Fixed: true, TotalBytes: gb(500), FreeBytes: gb(120), Label: "Data"})
				s.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: gb(256), FreeBytes: gb(30), Label: "System", HasWindows: true})
				return s
			},
			expect: func(t *testing.T, parts []model.Partition) {
				require.Len(t, parts, 2)
				assert.Equal(t, 'C', parts[0].Letter)
				assert.Equal(t, uint64(256*1024), parts[0].TotalMB)
				assert.Equal(t, uint64(30*1024), parts[0].FreeMB)
				assert.Equal(t, "System", parts[0].Label)
				assert.True(t, parts[0].HasWindows)
				assert.Equal(t, 'D', parts[1].Letter)
				assert.Equal(t, "Data", parts[1].Label)
			},
		},

		"Optical and removable drives should not be listed.": {
			system: func() *sysinfofake.System {
				s := sysinfofake.NewSystem('X')
				s.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: gb(256), FreeBytes: gb(30)})
				s.SetVolume('E', sysinfofake.Volume{CDROM: true, TotalBytes: gb(4)})
				s.SetVolume('F', sysinfofake.Volume{Fixed: false, TotalBytes: gb(16)})
				return s
			},
			expect: func(t *testing.T, parts []model.Partition) {
				require.Len(t, parts, 1)
				assert.Equal(t, 'C', parts[0].Letter)
			},
		},

		"An optical drive reporting itself as fixed should still be skipped.": {
			system: func() *sysinfofake.System {
				s := sysinfofake.NewSystem('X')
				s.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: gb(256), FreeBytes: gb(30)})
				s.SetVolume('E', sysinfofake.Volume{Fixed: true, CDROM: true, TotalBytes: gb(4)})
				return s
			},
			expect: func(t *testing.T, parts []model.Partition) {
				require.Len(t, parts, 1)
				assert.Equal(t, 'C', parts[0].Letter)
			},
		},

		"The maintenance environment drive should be flagged.": {
			system: func() *sysinfofake.System {
				s := sysinfofake.NewSystem('X')
				s.SetVolume('X', sysinfofake.Volume{Fixed: true, TotalBytes: gb(2), FreeBytes: gb(1)})
				s.SetVolume('C', sysinfofake.Volume{Fixed: true, TotalBytes: gb(256), FreeBytes: gb(30)})
				return s
			},
			expect: func(t *testing.T, parts []model.Partition) {
				require.Len(t, parts, 2)
				assert.False(t, parts[0].IsBootEnvironment)
				assert.True(t, parts[1].IsBootEnvironment)
			},
		},

		"An empty system should yield an empty list.": {
			system: func() *sysinfofake.System { return sysinfofake.NewSystem('X') },
			expect: func(t *testing.T, parts []model.Partition) {
				assert.Empty(t, parts)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			scanner, err := inventory.NewScanner(inventory.ScannerConfig{
				System:      test.system(),
				Partitioner: diskpartmock.NewMockPartitioner(t),
			})
			require.NoError(t, err)

			parts, err := scanner.List(context.TODO())

			require.NoError(t, err)
			test.expect(t, parts)
		})
	}
}

func TestScannerDescribe(t *testing.T) {
	assert := assert.New(t)

	disk, part := 0, 4
	mp := diskpartmock.NewMockPartitioner(t)
	mp.On("VolumeDetail", mock.Anything, 'D').Once().Return(diskpart.VolumeDetail{
		DiskNumber:      &disk,
		PartitionNumber: &part,
		Style:           model.PartitionStyleGPT,
	}, nil)

	scanner, err := inventory.NewScanner(inventory.ScannerConfig{
		System:      sysinfofake.NewSystem('X'),
		Partitioner: mp,
	})
	require.NoError(t, err)

	got, err := scanner.Describe(context.TODO(), model.Partition{Letter: 'D'})

	require.NoError(t, err)
	require.NotNil(t, got.DiskNumber)
	require.NotNil(t, got.PartitionNumber)
	assert.Equal(0, *got.DiskNumber)
	assert.Equal(4, *got.PartitionNumber)
	assert.Equal(model.PartitionStyleGPT, got.Style)
}
