//go:build !windows

package sysinfo

import (
	"fmt"
	"os"
)

// stubSystem is a non-Windows placeholder so the tool builds on development
// hosts. Every probe reports "nothing there".
type stubSystem struct{}

// New returns the System implementation for the running platform.
func New() System { return stubSystem{} }

func (stubSystem) DriveExists(rune) bool   { return false }
func (stubSystem) IsFixedDrive(rune) bool  { return false }
func (stubSystem) IsCDROM(rune) bool       { return false }
func (stubSystem) VolumeLabel(rune) string { return "" }
func (stubSystem) BootDrive() rune         { return bootDriveFromEnv('X') }

func (stubSystem) Space(letter rune) (SpaceInfo, error) {
	return SpaceInfo{}, fmt.Errorf("volume probing is not supported on this platform")
}

func (stubSystem) HasWindowsLayout(rune) bool { return false }

func (stubSystem) WriteHidden(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (stubSystem) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (stubSystem) IsUEFI() bool { return false }
