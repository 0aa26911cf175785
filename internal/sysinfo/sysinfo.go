// Package sysinfo probes drive-letter geometry of the running system.
//
// It is the only place that talks to the OS volume APIs directly; everything
// above it (inventory, lifecycle, workflow) works against the System
// interface so it can run against a fake on any platform.
package sysinfo

import "os"

// SpaceInfo is the free/total space of a volume in bytes.
type SpaceInfo struct {
	FreeBytes  uint64
	TotalBytes uint64
}

// System is the drive-letter probing interface.
type System interface {
	// DriveExists reports whether the drive letter is mounted at all.
	DriveExists(letter rune) bool
	// IsFixedDrive reports whether the letter is a fixed (non-removable,
	// non-optical) volume.
	IsFixedDrive(letter rune) bool
	// IsCDROM reports whether the letter is an optical drive.
	IsCDROM(letter rune) bool
	// Space returns the volume free/total space.
	Space(letter rune) (SpaceInfo, error)
	// VolumeLabel returns the volume label, empty when unreadable.
	VolumeLabel(letter rune) string
	// BootDrive returns the letter the maintenance environment runs from
	// (SystemDrive, X under WinPE).
	BootDrive() rune
	// HasWindowsLayout reports whether the volume carries an operating
	// system layout (Windows\System32 present).
	HasWindowsLayout(letter rune) bool
	// WriteHidden writes a file and marks it hidden where the platform
	// supports it.
	WriteHidden(path string, data []byte) error
	// FileExists reports whether a path exists (hidden files included).
	FileExists(path string) bool
	// IsUEFI reports whether the machine booted in UEFI mode.
	IsUEFI() bool
}

// bootDriveFromEnv resolves the boot drive letter from the environment,
// defaulting to the given letter.
func bootDriveFromEnv(def rune) rune {
	drive := os.Getenv("SystemDrive")
	if len(drive) == 0 {
		return def
	}
	r := rune(drive[0])
	if r >= 'a' && r <= 'z' {
		r = r - 'a' + 'A'
	}
	return r
}
