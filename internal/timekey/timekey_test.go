package timekey

import (
	"testing"
	"time"

	"github.com/mmynk/tithe/internal/models"
)

func TestNormalize(t *testing.T) {
	created := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		raw   string
		title string
		want  string
	}{
		{"year-month unpadded", "2025-9", "", "2025-09"},
		{"year-month padded", "2025-09", "", "2025-09"},
		{"month-year dash", "9-2025", "", "2025-09"},
		{"month-year dash padded", "11-2024", "", "2024-11"},
		{"year slash month", "2025/3", "", "2025-03"},
		{"month slash year", "10/2025", "", "2025-10"},
		{"raw tag is trimmed", "  2025-7 ", "", "2025-07"},
		{"raw tag wins over title", "2024-02", "Report 9/2025", "2024-02"},
		{"title suffix", "", "Report 9/2025", "2025-09"},
		{"title suffix with dash", "", "Report 12-2023", "2023-12"},
		{"title suffix trailing space", "", "Report 9/2025  ", "2025-09"},
		{"unparsable tag falls to title", "sept", "Report 4/2025", "2025-04"},
		{"fallback to creation month", "", "Report", "2025-01"},
		{"suffix must be at the end", "", "9/2025 report", "2025-01"},
		{"three digit year is not a tag", "202-1", "", "2025-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.title, created); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.title, got, tt.want)
			}
		})
	}
}

func TestNormalize_CreationTimeIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 2025-02-01 01:00 at +3 is still January in UTC.
	created := time.Date(2025, time.February, 1, 1, 0, 0, 0, loc)
	if got := Normalize("", "", created); got != "2025-01" {
		t.Errorf("Normalize = %q, want 2025-01", got)
	}
}

func TestKeyFormats(t *testing.T) {
	k := Key{Year: 2025, Month: 9}
	if k.String() != "2025-09" {
		t.Errorf("String() = %q", k.String())
	}
	if k.Display() != "09/2025" {
		t.Errorf("Display() = %q", k.Display())
	}
	if k.YearString() != "2025" {
		t.Errorf("YearString() = %q", k.YearString())
	}
}

func TestKeyCompare(t *testing.T) {
	a := Key{Year: 2024, Month: 12}
	b := Key{Year: 2025, Month: 1}
	c := Key{Year: 2025, Month: 2}

	if a.Compare(b) != -1 || b.Compare(a) != 1 {
		t.Error("year ordering wrong")
	}
	if b.Compare(c) != -1 || c.Compare(b) != 1 {
		t.Error("month ordering wrong")
	}
	if b.Compare(b) != 0 {
		t.Error("equal keys should compare 0")
	}
}

func TestWithTitleSuffix(t *testing.T) {
	tests := []struct {
		title string
		key   Key
		want  string
	}{
		{"New calculation", Key{2025, 9}, "New calculation 9/2025"},
		{"New calculation 8/2025", Key{2025, 9}, "New calculation 9/2025"},
		{"Rent 12/2024", Key{2025, 1}, "Rent 1/2025"},
		{"", Key{2025, 10}, "10/2025"},
		{"  Spaced   ", Key{2025, 3}, "Spaced 3/2025"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := WithTitleSuffix(tt.title, tt.key)
			if got != tt.want {
				t.Errorf("WithTitleSuffix(%q) = %q, want %q", tt.title, got, tt.want)
			}
			// the suffix written must read back as the same key
			if k, ok := FromTitle(got); !ok || k != tt.key {
				t.Errorf("FromTitle(%q) = %v, %v", got, k, ok)
			}
		})
	}
}

func TestOfSession(t *testing.T) {
	s := &models.CalcSession{
		Title:     "Salary 3/2024",
		CreatedAt: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	if got := OfSession(s); got != (Key{2024, 3}) {
		t.Errorf("OfSession without tag = %v", got)
	}

	s.TimeTag = "2024-4"
	if got := OfSession(s); got != (Key{2024, 4}) {
		t.Errorf("OfSession with tag = %v", got)
	}
}
