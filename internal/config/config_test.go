package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/config"
	"github.com/peforge/peforge/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDetectOperation(t *testing.T) {
	tests := map[string]struct {
		files map[string]string
		expOp model.Operation
		expOK bool
	}{
		"An install file should select the install operation.": {
			files: map[string]string{config.InstallFileName: "target_partition: C\n"},
			expOp: model.OperationInstall,
			expOK: true,
		},

		"A backup file should select the backup operation.": {
			files: map[string]string{config.BackupFileName: "source_partition: C\n"},
			expOp: model.OperationBackup,
			expOK: true,
		},

		"With both files present install should win.": {
			files: map[string]string{
				config.InstallFileName: "target_partition: C\n",
				config.BackupFileName:  "source_partition: C\n",
			},
			expOp: model.OperationInstall,
			expOK: true,
		},

		"An empty directory should select nothing.": {
			files: map[string]string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			dir := t.TempDir()
			for name, content := range test.files {
				writeFile(t, dir, name, content)
			}

			op, ok := config.DetectOperation(dir)

			assert.Equal(test.expOK, ok)
			if test.expOK {
				assert.Equal(test.expOp, op)
			}
		})
	}
}

func TestLoadInstall(t *testing.T) {
	tests := map[string]struct {
		content string
		missing bool
		expCfg  *model.InstallConfig
		expErr  error
	}{
		"A full install configuration should load with every field.": {
			content: `target_partition: "C"
image_path: 'D:\images\win10.wim'
volume_index: 3
volume_label: Windows
driver_mode: 2
unattended: true
custom_username: admin
advanced:
  disable_windows_update: true
  remove_uwp_apps: true
`,
			expCfg: &model.InstallConfig{
				TargetPartition: "C",
				ImagePath:       `D:\images\win10.wim`,
				VolumeIndex:     3,
				VolumeLabel:     "Windows",
				DriverMode:      model.DriverModeImport,
				Unattended:      true,
				CustomUsername:  "admin",
				Advanced: model.AdvancedOptions{
					DisableWindowsUpdate: true,
					RemoveUWPApps:        true,
				},
			},
		},

		"A minimal configuration should default the volume index to 1.": {
			content: "target_partition: \"C\"\nimage_path: 'D:\\win.wim'\n",
			expCfg: &model.InstallConfig{
				TargetPartition: "C",
				ImagePath:       `D:\win.wim`,
				VolumeIndex:     1,
			},
		},

		"A configuration without a target partition should not validate.": {
			content: "image_path: 'D:\\win.wim'\n",
			expErr:  model.ErrNotValid,
		},

		"A missing file should report the missing-config error.": {
			missing: true,
			expErr:  model.ErrMissingConfig,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			dir := t.TempDir()
			if !test.missing {
				writeFile(t, dir, config.InstallFileName, test.content)
			}

			cfg, err := config.LoadInstall(dir)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(test.expCfg, cfg)
		})
	}
}

func TestLoadBackup(t *testing.T) {
	tests := map[string]struct {
		content string
		expCfg  *model.BackupConfig
		expErr  error
	}{
		"A full backup configuration should load with every field.": {
			content: `source_partition: "C"
save_path: 'E:\backup'
name: weekly
description: weekly full backup
format: esd
incremental: true
`,
			expCfg: &model.BackupConfig{
				SourcePartition: "C",
				SavePath:        `E:\backup`,
				Name:            "weekly",
				Description:     "weekly full backup",
				Format:          model.ImageFormatESD,
				Incremental:     true,
			},
		},

		"An empty format should default to wim.": {
			content: "source_partition: \"C\"\nsave_path: 'E:\\backup'\n",
			expCfg: &model.BackupConfig{
				SourcePartition: "C",
				SavePath:        `E:\backup`,
				Format:          model.ImageFormatWIM,
			},
		},

		"An swm format without a split size should not validate.": {
			content: "source_partition: \"C\"\nsave_path: 'E:\\backup'\nformat: swm\n",
			expErr:  model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			dir := t.TempDir()
			writeFile(t, dir, config.BackupFileName, test.content)

			cfg, err := config.LoadBackup(dir)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(test.expCfg, cfg)
		})
	}
}
