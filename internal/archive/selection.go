package archive

import (
	"slices"
	"sort"
	"strconv"

	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

// Buckets are the distinct periods present in a session list.
type Buckets struct {
	// Years sorted newest first.
	Years []int

	// Months sorted newest first.
	Months []timekey.Key
}

// YearKeys returns Years as "YYYY" strings.
func (b Buckets) YearKeys() []string {
	out := make([]string, len(b.Years))
	for i, y := range b.Years {
		out[i] = strconv.Itoa(y)
	}
	return out
}

// MonthKeys returns Months in canonical "YYYY-MM" form.
func (b Buckets) MonthKeys() []string {
	out := make([]string, len(b.Months))
	for i, k := range b.Months {
		out[i] = k.String()
	}
	return out
}

// Bucket collects the distinct years and year-months of sessions.
func Bucket(sessions []*models.CalcSession) Buckets {
	years := make(map[int]struct{})
	months := make(map[timekey.Key]struct{})
	for _, s := range sessions {
		k := timekey.OfSession(s)
		years[k.Year] = struct{}{}
		months[k] = struct{}{}
	}

	var b Buckets
	for y := range years {
		b.Years = append(b.Years, y)
	}
	for k := range months {
		b.Months = append(b.Months, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(b.Years)))
	slices.SortFunc(b.Months, func(x, y timekey.Key) int { return y.Compare(x) })
	return b
}

// Mode tags a Selection.
type Mode int

const (
	SelectNone Mode = iota
	SelectAll
	SelectSet
)

// Selection is a choice over a universe of keys: nothing, everything, or an
// explicit set.
type Selection struct {
	mode Mode
	keys []string
}

// None selects nothing.
func None() Selection { return Selection{mode: SelectNone} }

// All selects the whole universe.
func All() Selection { return Selection{mode: SelectAll} }

// Set selects the given keys. An empty set is None.
func Set(keys ...string) Selection {
	if len(keys) == 0 {
		return None()
	}
	k := slices.Clone(keys)
	slices.Sort(k)
	return Selection{mode: SelectSet, keys: slices.Compact(k)}
}

// Mode returns the selection's tag.
func (s Selection) Mode() Mode { return s.mode }

// Resolve returns the selected keys. An explicit set comes back in ascending
// order; All keeps the order of universe, newest first for Buckets.
func (s Selection) Resolve(universe []string) []string {
	switch s.mode {
	case SelectAll:
		return slices.Clone(universe)
	case SelectSet:
		return slices.Clone(s.keys)
	}
	return nil
}

// covers reports whether every key of universe is selected.
func (s Selection) covers(universe []string) bool {
	if s.mode == SelectAll {
		return true
	}
	if s.mode == SelectNone {
		return false
	}
	for _, k := range universe {
		if _, found := slices.BinarySearch(s.keys, k); !found {
			return false
		}
	}
	return true
}

// Picker holds the year and month selections. They are mutually exclusive:
// picking anything on one side clears the other.
type Picker struct {
	Years  Selection
	Months Selection
}

// PickYears selects exactly the given years ("YYYY").
func (p *Picker) PickYears(years ...string) {
	p.Years = Set(years...)
	if p.Years.mode != SelectNone {
		p.Months = None()
	}
}

// PickMonths selects exactly the given months. Any tag spelling timekey
// accepts is stored in canonical "YYYY-MM" form.
func (p *Picker) PickMonths(months ...string) {
	canonical := make([]string, 0, len(months))
	for _, m := range months {
		if k, ok := timekey.Parse(m); ok {
			m = k.String()
		}
		canonical = append(canonical, m)
	}
	p.Months = Set(canonical...)
	if p.Months.mode != SelectNone {
		p.Years = None()
	}
}

// ToggleAllYears clears the year selection if every year is already picked,
// otherwise picks all years and clears months.
func (p *Picker) ToggleAllYears(b Buckets) {
	if p.Years.covers(b.YearKeys()) {
		p.Years = None()
		return
	}
	p.Years = All()
	p.Months = None()
}

// ToggleAllMonths is ToggleAllYears for months.
func (p *Picker) ToggleAllMonths(b Buckets) {
	if p.Months.covers(b.MonthKeys()) {
		p.Months = None()
		return
	}
	p.Months = All()
	p.Years = None()
}
