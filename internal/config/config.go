// Package config loads the run configuration dropped on the data partition
// by the preparation tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/peforge/peforge/internal/model"
)

const (
	// InstallFileName is the install configuration file looked up in the
	// configuration directory.
	InstallFileName = "peforge-install.yaml"
	// BackupFileName is the backup configuration file.
	BackupFileName = "peforge-backup.yaml"
)

// DetectOperation reports which operation the configuration directory asks
// for. An install file wins over a backup file when both are present.
func DetectOperation(dir string) (model.Operation, bool) {
	if fileExists(filepath.Join(dir, InstallFileName)) {
		return model.OperationInstall, true
	}
	if fileExists(filepath.Join(dir, BackupFileName)) {
		return model.OperationBackup, true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadInstall reads and validates the install configuration from dir.
func LoadInstall(dir string) (*model.InstallConfig, error) {
	var cfg model.InstallConfig
	if err := load(filepath.Join(dir, InstallFileName), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid install configuration: %w", err)
	}
	return &cfg, nil
}

// LoadBackup reads and validates the backup configuration from dir.
func LoadBackup(dir string) (*model.BackupConfig, error) {
	var cfg model.BackupConfig
	if err := load(filepath.Join(dir, BackupFileName), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backup configuration: %w", err)
	}
	return &cfg, nil
}

func load(path string, into interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, model.ErrMissingConfig)
		}
		return fmt.Errorf("could not read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("could not parse %s: %w", path, err)
	}

	return nil
}
