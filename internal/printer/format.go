package printer

import (
	"fmt"
	"time"
)

// FormatMiB returns a human-readable size string for a MiB quantity.
// Examples: "512 MB", "1.5 GB", "2.0 TB".
func FormatMiB(mib uint64) string {
	const (
		gb = 1024
		tb = 1024 * gb
	)

	switch {
	case mib >= tb:
		return fmt.Sprintf("%.1f TB", float64(mib)/float64(tb))
	case mib >= gb:
		return fmt.Sprintf("%.1f GB", float64(mib)/float64(gb))
	default:
		return fmt.Sprintf("%d MB", mib)
	}
}

// FormatBytes returns a human-readable byte size string.
// Examples: "0 B", "512 B", "1.5 KB", "700 MB", "10.0 GB".
func FormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)

	switch {
	case bytes >= mb:
		return FormatMiB(bytes / mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// timeUnit is one bucket of the relative time rendering.
type timeUnit struct {
	span     time.Duration
	singular string
}

var timeUnits = []timeUnit{
	{span: 24 * time.Hour, singular: "day"},
	{span: time.Hour, singular: "hour"},
	{span: time.Minute, singular: "minute"},
	{span: time.Second, singular: "second"},
}

// TimeAgo returns a human-readable relative time string in UTC.
// Examples: "5 seconds ago (UTC)", "2 minutes ago (UTC)", "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, u := range timeUnits {
		if diff < u.span && u.span > time.Second {
			continue
		}
		n := int(diff / u.span)
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", u.singular)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, u.singular)
	}

	return "0 seconds ago (UTC)"
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
