package archive

import (
	"regexp"
	"strings"
	"time"
)

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename replaces control and path-breaking characters with
// spaces, collapses whitespace and trims the result.
func SanitizeFilename(s string) string {
	s = unsafeChars.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// AttachmentFilename names a receipt attached on day at:
// "<title> - <note> - YYYY-MM-DD.<ext>".
func AttachmentFilename(title, note string, at time.Time, ext string) string {
	t := SanitizeFilename(title)
	if t == "" {
		t = "calculation"
	}
	n := SanitizeFilename(note)
	if n == "" {
		n = "deduction"
	}
	return t + " - " + n + " - " + at.Format(time.DateOnly) + "." + ext
}

// SessionArchiveName names the archive of a single session's receipts.
func SessionArchiveName(title string) string {
	t := SanitizeFilename(title)
	if t == "" {
		t = "calculation"
	}
	return t + " - receipts.zip"
}
