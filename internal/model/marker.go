package model

import (
	"fmt"
	"path/filepath"
	"time"
)

// MarkerFileName is the hidden sentinel written at the root of an
// auto-created staging partition. Its presence is the only authority for
// "this partition may be deleted automatically"; a partition without it is
// never touched by reclamation.
const MarkerFileName = "PEFORGE_AutoCreated.marker"

// Marker describes an auto-created staging partition. The on-disk contents
// are informational only and are never parsed back.
type Marker struct {
	CreatedAt    time.Time
	SourceLetter rune
	SizeMB       uint64
}

// Render returns the marker file body.
func (m Marker) Render() string {
	return fmt.Sprintf(
		"peforge auto-created staging partition\n"+
			"Created: %s\n"+
			"Source: %c:\n"+
			"Size: %d MB\n"+
			"This partition was created automatically and can be safely deleted after deployment.\n",
		m.CreatedAt.Format("2006-01-02 15:04:05"), m.SourceLetter, m.SizeMB)
}

// MarkerPath returns the marker file path on the given drive letter.
func MarkerPath(letter rune) string {
	return filepath.Join(Root(letter), MarkerFileName)
}
