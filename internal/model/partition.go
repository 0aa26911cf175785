package model

import "fmt"

// PartitionStyle is the partition table style of the disk that owns a volume.
type PartitionStyle string

const (
	PartitionStyleGPT     PartitionStyle = "GPT"
	PartitionStyleMBR     PartitionStyle = "MBR"
	PartitionStyleUnknown PartitionStyle = "Unknown"
)

// Partition is a discovered fixed-disk volume.
//
// Disk and partition numbers are a point-in-time query result, not a durable
// identifier: any destructive operation (delete, shrink) can renumber them,
// so a Partition must be re-enumerated after such an operation and never
// cached across one.
type Partition struct {
	// Letter is the drive letter without the colon (e.g. 'C').
	Letter rune
	// TotalMB and FreeMB are volume sizes in MiB.
	TotalMB uint64
	FreeMB  uint64
	Label   string
	Style   PartitionStyle
	// DiskNumber and PartitionNumber are nil when they could not be
	// resolved. Callers must treat nil as "not enough information to
	// proceed safely", never as zero.
	DiskNumber      *int
	PartitionNumber *int
	// IsBootEnvironment marks the volume the maintenance environment is
	// currently running from (X: under WinPE). It is never a deployment
	// candidate.
	IsBootEnvironment bool
	// HasWindows marks volumes with an operating system layout
	// (\Windows\System32 present).
	HasWindows bool
}

// Drive returns the "C:" form of the partition letter.
func (p Partition) Drive() string { return Drive(p.Letter) }

// Root returns the "C:\" form of the partition letter.
func (p Partition) Root() string { return Root(p.Letter) }

// Drive returns the "C:" form of a drive letter.
func Drive(letter rune) string { return fmt.Sprintf("%c:", letter) }

// Root returns the "C:\" form of a drive letter.
func Root(letter rune) string { return fmt.Sprintf(`%c:\`, letter) }
