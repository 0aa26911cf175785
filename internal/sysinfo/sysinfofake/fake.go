// Package sysinfofake provides an in-memory System for tests and dry runs.
package sysinfofake

import (
	"fmt"
	"strings"
	"sync"

	"github.com/peforge/peforge/internal/sysinfo"
)

// Volume is one fake mounted drive letter.
type Volume struct {
	Fixed      bool
	CDROM      bool
	FreeBytes  uint64
	TotalBytes uint64
	Label      string
	HasWindows bool
}

// System is a fake implementation of sysinfo.System backed by a mutable
// volume map. Tests mutate it directly to simulate create/delete/extend.
type System struct {
	mu      sync.Mutex
	volumes map[rune]*Volume
	boot    rune
	uefi    bool
	// Hidden holds the contents of files written through WriteHidden,
	// keyed by path.
	Hidden map[string][]byte
}

// NewSystem creates a fake system with the given boot drive.
func NewSystem(boot rune) *System {
	return &System{
		volumes: map[rune]*Volume{},
		boot:    boot,
		Hidden:  map[string][]byte{},
	}
}

// SetVolume mounts or replaces a fake volume.
func (s *System) SetVolume(letter rune, v Volume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vv := v
	s.volumes[letter] = &vv
}

// RemoveVolume unmounts a fake volume.
func (s *System) RemoveVolume(letter rune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.volumes, letter)
}

// SetUEFI sets the firmware mode.
func (s *System) SetUEFI(uefi bool) { s.uefi = uefi }

func (s *System) volume(letter rune) (*Volume, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volumes[letter]
	return v, ok
}

func (s *System) DriveExists(letter rune) bool {
	_, ok := s.volume(letter)
	return ok
}

func (s *System) IsFixedDrive(letter rune) bool {
	v, ok := s.volume(letter)
	return ok && v.Fixed
}

func (s *System) IsCDROM(letter rune) bool {
	v, ok := s.volume(letter)
	return ok && v.CDROM
}

func (s *System) Space(letter rune) (sysinfo.SpaceInfo, error) {
	v, ok := s.volume(letter)
	if !ok {
		return sysinfo.SpaceInfo{}, fmt.Errorf("drive %c not mounted", letter)
	}
	return sysinfo.SpaceInfo{FreeBytes: v.FreeBytes, TotalBytes: v.TotalBytes}, nil
}

func (s *System) VolumeLabel(letter rune) string {
	v, ok := s.volume(letter)
	if !ok {
		return ""
	}
	return v.Label
}

func (s *System) BootDrive() rune { return s.boot }

func (s *System) HasWindowsLayout(letter rune) bool {
	v, ok := s.volume(letter)
	return ok && v.HasWindows
}

func (s *System) WriteHidden(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Hidden == nil {
		s.Hidden = map[string][]byte{}
	}
	s.Hidden[strings.ToUpper(path)] = data
	return nil
}

// FileExists reports whether a file was written through WriteHidden.
func (s *System) FileExists(path string) bool {
	return s.HasHidden(path)
}

// RemoveFile drops a previously written file, as a partition delete would.
func (s *System) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Hidden, strings.ToUpper(path))
}

// HasHidden reports whether a hidden file was written at path.
func (s *System) HasHidden(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Hidden[strings.ToUpper(path)]
	return ok
}

func (s *System) IsUEFI() bool { return s.uefi }
