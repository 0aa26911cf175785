package diskpart

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// decodeTranscript turns raw tool output into UTF-8. The tool writes in the
// host's legacy codepage; when the bytes are not already valid UTF-8 they are
// decoded as GBK, which covers both the ANSI Latin range and Simplified
// Chinese hosts.
func decodeTranscript(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		// Keep whatever is readable; keyword matching is best effort on
		// mangled bytes anyway.
		return string(raw)
	}

	return string(decoded)
}
