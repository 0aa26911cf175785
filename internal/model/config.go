package model

import "fmt"

// ImageFormat is the backup image container format.
type ImageFormat string

const (
	ImageFormatWIM ImageFormat = "wim"
	ImageFormatESD ImageFormat = "esd"
	ImageFormatSWM ImageFormat = "swm"
)

// DriverMode controls what happens to exported drivers during install.
type DriverMode int

const (
	// DriverModeNone skips driver handling entirely.
	DriverModeNone DriverMode = iota
	// DriverModeSaveOnly leaves exported drivers on disk without importing.
	DriverModeSaveOnly
	// DriverModeImport injects the exported drivers into the applied image.
	DriverModeImport
)

// AdvancedOptions are the optional post-apply customizations. All of them
// are best-effort: a failure never aborts the install.
type AdvancedOptions struct {
	RemoveShortcutArrow       bool `yaml:"remove_shortcut_arrow"`
	RestoreClassicContextMenu bool `yaml:"restore_classic_context_menu"`
	DisableWindowsUpdate      bool `yaml:"disable_windows_update"`
	DisableDefender           bool `yaml:"disable_defender"`
	DisableUAC                bool `yaml:"disable_uac"`
	DisableDeviceEncryption   bool `yaml:"disable_device_encryption"`
	RemoveUWPApps             bool `yaml:"remove_uwp_apps"`
}

// InstallConfig is the already-parsed install configuration handed to the
// workflow orchestrator. The orchestrator only reads fields; the on-disk
// format belongs to the config collaborator.
type InstallConfig struct {
	TargetPartition string          `yaml:"target_partition"`
	ImagePath       string          `yaml:"image_path"`
	VolumeIndex     int             `yaml:"volume_index"`
	VolumeLabel     string          `yaml:"volume_label"`
	DriverMode      DriverMode      `yaml:"driver_mode"`
	Unattended      bool            `yaml:"unattended"`
	CustomUsername  string          `yaml:"custom_username"`
	Advanced        AdvancedOptions `yaml:"advanced"`
}

// Validate validates the install configuration.
func (c *InstallConfig) Validate() error {
	if c.TargetPartition == "" {
		return fmt.Errorf("target partition is required: %w", ErrNotValid)
	}
	if c.ImagePath == "" {
		return fmt.Errorf("image path is required: %w", ErrNotValid)
	}
	if c.VolumeIndex < 1 {
		c.VolumeIndex = 1
	}
	return nil
}

// BackupConfig is the already-parsed backup configuration.
type BackupConfig struct {
	SourcePartition string      `yaml:"source_partition"`
	SavePath        string      `yaml:"save_path"`
	Name            string      `yaml:"name"`
	Description     string      `yaml:"description"`
	Format          ImageFormat `yaml:"format"`
	Incremental     bool        `yaml:"incremental"`
	SplitSizeMB     int         `yaml:"split_size_mb"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	if c.SourcePartition == "" {
		return fmt.Errorf("source partition is required: %w", ErrNotValid)
	}
	if c.SavePath == "" {
		return fmt.Errorf("save path is required: %w", ErrNotValid)
	}
	switch c.Format {
	case ImageFormatWIM, ImageFormatESD, ImageFormatSWM:
	case "":
		c.Format = ImageFormatWIM
	default:
		return fmt.Errorf("unknown image format %q: %w", c.Format, ErrNotValid)
	}
	if c.Format == ImageFormatSWM && c.SplitSizeMB <= 0 {
		return fmt.Errorf("split size is required for swm format: %w", ErrNotValid)
	}
	return nil
}
