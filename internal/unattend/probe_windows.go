//go:build windows

package unattend

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// fileVersionProber reads the file version of the image's ntdll.dll, which
// tracks the OS build it shipped with.
type fileVersionProber struct{}

// NewProber returns the real Windows generation prober.
func NewProber() Prober { return fileVersionProber{} }

func (fileVersionProber) WindowsVersion(root string) (Version, error) {
	path := filepath.Join(root, "Windows", "System32", "ntdll.dll")

	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil {
		return VersionUnknown, fmt.Errorf("could not read version info size of %s: %w", path, err)
	}

	data := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&data[0])); err != nil {
		return VersionUnknown, fmt.Errorf("could not read version info of %s: %w", path, err)
	}

	var fixed *windows.VS_FIXEDFILEINFO
	var fixedLen uint32
	if err := windows.VerQueryValue(unsafe.Pointer(&data[0]), `\`, unsafe.Pointer(&fixed), &fixedLen); err != nil {
		return VersionUnknown, fmt.Errorf("could not query fixed version info of %s: %w", path, err)
	}

	major := fixed.FileVersionMS >> 16
	minor := fixed.FileVersionMS & 0xffff

	switch {
	case major >= 10:
		return VersionWin10, nil
	case major == 6 && minor >= 2:
		return VersionWin8, nil
	case major == 6:
		return VersionWin7, nil
	default:
		return VersionUnknown, fmt.Errorf("unsupported Windows version %d.%d", major, minor)
	}
}
