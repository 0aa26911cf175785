//go:build !windows

package unattend

import "fmt"

type unsupportedProber struct{}

// NewProber returns the real Windows generation prober.
func NewProber() Prober { return unsupportedProber{} }

func (unsupportedProber) WindowsVersion(string) (Version, error) {
	return VersionUnknown, fmt.Errorf("image version probing is only available on windows")
}
