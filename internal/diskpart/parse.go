package diskpart

import (
	"strconv"
	"strings"

	"github.com/peforge/peforge/internal/model"
)

// Keyword sets for transcript verdicts, in the two languages the tool is
// known to emit. Matching is case-insensitive and fail-closed: a transcript
// with neither success nor failure keywords counts as failure.
var (
	successKeywords = []string{
		"successfully",
		"extended the volume",
		"成功",
	}
	failureKeywords = []string{
		"error",
		"failed",
		"invalid",
		"denied",
		"not enough",
		"no usable",
		"错误",
		"失败",
		"无效",
		"无法",
		"拒绝",
		"不支持",
		"没有可用",
		"空间不足",
	}
	noSpaceKeywords = []string{
		"no usable",
		"not enough",
		"没有可用",
		"空间不足",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// scriptSucceeded reports whether a transcript carries a success verdict and
// no failure verdict.
func scriptSucceeded(transcript string) bool {
	lower := strings.ToLower(transcript)
	return containsAny(lower, successKeywords) && !containsAny(lower, failureKeywords)
}

// hasFailureKeyword reports whether a transcript carries any failure verdict
// that is not shadowed by a success verdict.
func hasFailureKeyword(transcript string) bool {
	lower := strings.ToLower(transcript)
	return containsAny(lower, failureKeywords) && !containsAny(lower, successKeywords)
}

// hasNoUsableSpaceKeyword reports the definitive "no adjacent unallocated
// space" verdict of an extend transcript.
func hasNoUsableSpaceKeyword(transcript string) bool {
	return containsAny(strings.ToLower(transcript), noSpaceKeywords)
}

// parseShrinkMax extracts the maximum shrinkable size in MiB from a
// `shrink querymax` transcript. Pattern order: English result line, Chinese
// result line, then a generic "any line with a number and a size unit"
// fallback that skips banner/echo lines. 0 means no number could be
// extracted, which callers treat as "cannot shrink".
func parseShrinkMax(transcript string) uint64 {
	if mb, ok := parseShrinkMaxEnglish(transcript); ok {
		return mb
	}
	if mb, ok := parseShrinkMaxChinese(transcript); ok {
		return mb
	}
	if mb, ok := parseShrinkMaxGeneric(transcript); ok {
		return mb
	}
	return 0
}

func parseShrinkMaxEnglish(transcript string) (uint64, bool) {
	for _, line := range strings.Split(transcript, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "reclaimable") && !strings.Contains(lower, "maximum") {
			continue
		}

		fields := strings.Fields(line)
		for i, field := range fields {
			num, err := strconv.ParseUint(strings.ReplaceAll(field, ",", ""), 10, 64)
			if err != nil {
				continue
			}
			if i+1 < len(fields) {
				switch unit := strings.ToLower(fields[i+1]); {
				case strings.HasPrefix(unit, "gb"):
					return num * 1024, true
				case strings.HasPrefix(unit, "mb"):
					return num, true
				case strings.HasPrefix(unit, "kb"):
					return num / 1024, true
				}
			}
			return num, true // No unit: the tool reports MB.
		}
	}
	return 0, false
}

var chineseShrinkHints = []string{"回收", "收回", "压缩", "缩小", "最大", "空间", "字节"}

func parseShrinkMaxChinese(transcript string) (uint64, bool) {
	for _, line := range strings.Split(transcript, "\n") {
		if !containsAny(line, chineseShrinkHints) {
			continue
		}
		if mb, ok := extractSizeMB(line); ok {
			return mb, true
		}
	}
	return 0, false
}

var bannerHints = []string{"diskpart", "microsoft", "version", "volume", "select"}

func parseShrinkMaxGeneric(transcript string) (uint64, bool) {
	for _, line := range strings.Split(transcript, "\n") {
		if strings.TrimSpace(line) == "" || containsAny(strings.ToLower(line), bannerHints) {
			continue
		}
		if mb, ok := extractSizeMB(line); ok {
			return mb, true
		}
	}
	return 0, false
}

// extractSizeMB finds the first non-zero number in a line and normalizes it
// to MiB using the unit that follows it. Thousands separators are skipped.
// A bare number above 100 is assumed to already be MB.
func extractSizeMB(line string) (uint64, bool) {
	runes := []rune(line)
	var numStr strings.Builder

	flush := func(rest string) (uint64, bool) {
		num, err := strconv.ParseUint(numStr.String(), 10, 64)
		numStr.Reset()
		if err != nil || num == 0 {
			return 0, false
		}

		rest = strings.ToLower(strings.TrimPrefix(rest, " "))
		switch {
		case strings.HasPrefix(rest, "gb"):
			return num * 1024, true
		case strings.HasPrefix(rest, "mb"):
			return num, true
		case strings.HasPrefix(rest, "kb"):
			return num / 1024, true
		}
		if num > 100 {
			return num, true
		}
		return 0, false
	}

	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			numStr.WriteRune(r)
		case numStr.Len() > 0 && r == ',':
			// Thousands separator.
		case numStr.Len() > 0:
			if mb, ok := flush(string(runes[i:])); ok {
				return mb, true
			}
		}
	}
	if numStr.Len() > 0 {
		if mb, ok := flush(""); ok {
			return mb, true
		}
	}

	return 0, false
}

// parseVolumeDetail extracts disk and partition numbers from a
// `detail volume` transcript.
func parseVolumeDetail(transcript string) VolumeDetail {
	var detail VolumeDetail

	for _, line := range strings.Split(transcript, "\n") {
		upper := strings.ToUpper(line)

		isDiskLine := (strings.Contains(upper, "DISK") || strings.Contains(line, "磁盘")) &&
			!strings.Contains(upper, "DISK ID") && !strings.Contains(line, "磁盘 ID")
		isPartitionLine := strings.Contains(upper, "PARTITION") || strings.Contains(line, "分区")

		if !isDiskLine && !isPartitionLine {
			continue
		}

		for _, field := range strings.Fields(line) {
			num, err := strconv.Atoi(field)
			if err != nil {
				continue
			}
			n := num
			if isDiskLine && detail.DiskNumber == nil {
				detail.DiskNumber = &n
			} else if isPartitionLine && detail.PartitionNumber == nil {
				detail.PartitionNumber = &n
			}
			break
		}
	}

	return detail
}

// parseDiskStyle extracts the partition table style from a `detail disk`
// transcript.
func parseDiskStyle(transcript string) model.PartitionStyle {
	upper := strings.ToUpper(transcript)
	switch {
	case strings.Contains(upper, "GPT"):
		return model.PartitionStyleGPT
	case strings.Contains(upper, "MBR"):
		return model.PartitionStyleMBR
	default:
		return model.PartitionStyleUnknown
	}
}

// lastNonEmptyLine returns the tail line of a transcript, used to keep error
// messages short while still pointing at the tool's verdict.
func lastNonEmptyLine(transcript string) string {
	lines := strings.Split(transcript, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
