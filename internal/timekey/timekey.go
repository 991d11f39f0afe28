// Package timekey resolves the year-month period a session belongs to.
//
// Sessions carry their period in several spellings ("2025-9", "09/2025",
// a title ending in "9/2025", or nothing at all). Normalize is the single
// place that turns them into the canonical "YYYY-MM" form; both the save
// path and archive bucketing go through it so they always agree.
package timekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/tithe/internal/models"
)

var (
	yearFirstDash   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	monthFirstDash  = regexp.MustCompile(`^(\d{1,2})-(\d{4})$`)
	yearFirstSlash  = regexp.MustCompile(`^(\d{4})/(\d{1,2})$`)
	monthFirstSlash = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)

	// titleSuffix matches a trailing "M/YYYY" or "M-YYYY" token.
	titleSuffix = regexp.MustCompile(`(\d{1,2})[/-](\d{4})$`)

	// titleSlashSuffix is the suffix WithTitleSuffix maintains.
	titleSlashSuffix = regexp.MustCompile(`\s*\d{1,2}/\d{4}$`)
)

// Key is a calendar year-month.
type Key struct {
	Year  int
	Month int
}

// FromTime returns the key of t in UTC.
func FromTime(t time.Time) Key {
	t = t.UTC()
	return Key{Year: t.Year(), Month: int(t.Month())}
}

// String returns the canonical "YYYY-MM" form.
func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// YearString returns the four-digit year.
func (k Key) YearString() string {
	return fmt.Sprintf("%04d", k.Year)
}

// Display returns the "MM/YYYY" form shown to users and used in archive names.
func (k Key) Display() string {
	return fmt.Sprintf("%02d/%04d", k.Month, k.Year)
}

// Compare orders keys chronologically: -1 if k is before o, 1 if after.
func (k Key) Compare(o Key) int {
	switch {
	case k.Year != o.Year:
		if k.Year < o.Year {
			return -1
		}
		return 1
	case k.Month < o.Month:
		return -1
	case k.Month > o.Month:
		return 1
	}
	return 0
}

// Parse reads a key in any of the accepted tag spellings.
func Parse(raw string) (Key, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Key{}, false
	}
	if m := yearFirstDash.FindStringSubmatch(v); m != nil {
		return build(m[1], m[2]), true
	}
	if m := monthFirstDash.FindStringSubmatch(v); m != nil {
		return build(m[2], m[1]), true
	}
	if m := yearFirstSlash.FindStringSubmatch(v); m != nil {
		return build(m[1], m[2]), true
	}
	if m := monthFirstSlash.FindStringSubmatch(v); m != nil {
		return build(m[2], m[1]), true
	}
	return Key{}, false
}

// FromTitle extracts the key from a title ending in "M/YYYY" or "M-YYYY".
func FromTitle(title string) (Key, bool) {
	m := titleSuffix.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return Key{}, false
	}
	return build(m[2], m[1]), true
}

// Resolve returns the period of a session: the raw tag if it parses, else the
// title suffix, else the creation month. It never fails.
func Resolve(raw, title string, createdAt time.Time) Key {
	if k, ok := Parse(raw); ok {
		return k
	}
	if k, ok := FromTitle(title); ok {
		return k
	}
	return FromTime(createdAt)
}

// Normalize is Resolve in canonical string form.
func Normalize(raw, title string, createdAt time.Time) string {
	return Resolve(raw, title, createdAt).String()
}

// WithTitleSuffix replaces a trailing "M/YYYY" token of title with the one
// for k (month not padded), or appends it.
func WithTitleSuffix(title string, k Key) string {
	base := strings.TrimSpace(titleSlashSuffix.ReplaceAllString(title, ""))
	suffix := fmt.Sprintf("%d/%04d", k.Month, k.Year)
	return strings.TrimSpace(base + " " + suffix)
}

// build converts regex captures; both are digit-only so Atoi cannot fail.
func build(year, month string) Key {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	return Key{Year: y, Month: m}
}

// OfSession is the period of a stored session. Saving and archive bucketing
// both call it.
func OfSession(s *models.CalcSession) Key {
	return Resolve(s.TimeTag, s.Title, s.CreatedAt)
}
