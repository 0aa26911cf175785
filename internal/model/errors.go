package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrDiskMismatch is returned when two partitions expected on the same
	// physical disk resolve to different disk numbers.
	ErrDiskMismatch = errors.New("disk mismatch")
	// ErrShrinkTooSmall is returned when a volume cannot relinquish enough
	// space for the requested staging partition.
	ErrShrinkTooSmall = errors.New("shrinkable space too small")
	// ErrExtendNotVerified is returned when an extend operation reported
	// success but the volume size did not grow.
	ErrExtendNotVerified = errors.New("extend not verified")
	// ErrScriptFailed is returned when the partitioning tool transcript
	// indicates failure (or no success keyword at all).
	ErrScriptFailed = errors.New("partitioning script failed")
	// ErrMissingConfig is returned when no install or backup configuration
	// can be found on any data partition.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrMissingImage is returned when the configured image file does not exist.
	ErrMissingImage = errors.New("missing image file")
)
