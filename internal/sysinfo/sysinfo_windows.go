//go:build windows

package sysinfo

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"

	"github.com/peforge/peforge/internal/model"
)

const (
	driveFixed = windows.DRIVE_FIXED
	driveCDROM = windows.DRIVE_CDROM
)

// winSystem is the real Windows implementation of System.
type winSystem struct{}

// New returns the System implementation for the running platform.
func New() System { return winSystem{} }

func rootPtr(letter rune) (*uint16, error) {
	return windows.UTF16PtrFromString(model.Root(letter))
}

func (winSystem) DriveExists(letter rune) bool {
	_, err := os.Stat(model.Root(letter))
	return err == nil
}

func (winSystem) IsFixedDrive(letter rune) bool {
	p, err := rootPtr(letter)
	if err != nil {
		return false
	}
	return windows.GetDriveType(p) == driveFixed
}

func (winSystem) IsCDROM(letter rune) bool {
	p, err := rootPtr(letter)
	if err != nil {
		return false
	}
	return windows.GetDriveType(p) == driveCDROM
}

func (winSystem) Space(letter rune) (SpaceInfo, error) {
	p, err := rootPtr(letter)
	if err != nil {
		return SpaceInfo{}, err
	}

	var freeAvailable, total, totalFree uint64
	err = windows.GetDiskFreeSpaceEx(p, &freeAvailable, &total, &totalFree)
	if err != nil {
		return SpaceInfo{}, fmt.Errorf("could not get disk space for %c: %w", letter, err)
	}

	return SpaceInfo{FreeBytes: freeAvailable, TotalBytes: total}, nil
}

func (winSystem) VolumeLabel(letter rune) string {
	p, err := rootPtr(letter)
	if err != nil {
		return ""
	}

	name := make([]uint16, 261)
	err = windows.GetVolumeInformation(p, &name[0], uint32(len(name)), nil, nil, nil, nil, 0)
	if err != nil {
		return ""
	}

	return windows.UTF16ToString(name)
}

func (winSystem) BootDrive() rune { return bootDriveFromEnv('X') }

func (winSystem) HasWindowsLayout(letter rune) bool {
	_, err := os.Stat(model.Root(letter) + `Windows\System32`)
	return err == nil
}

func (winSystem) WriteHidden(path string, data []byte) error {
	err := os.WriteFile(path, data, 0644)
	if err != nil {
		return err
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_HIDDEN)
}

func (winSystem) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (winSystem) IsUEFI() bool {
	// Firmware type probe: an EFI system partition mounted on one of the
	// tail letters, or the EFI marker on the boot drive.
	for _, letter := range []rune{'S', 'T', 'U', 'V', 'W', 'Y', 'Z'} {
		if _, err := os.Stat(model.Root(letter) + `EFI\Microsoft\Boot`); err == nil {
			return true
		}
	}
	_, err := os.Stat(`X:\EFI`)
	return err == nil
}
