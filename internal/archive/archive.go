// Package archive builds zip bundles of receipt images.
//
// Sessions are bucketed by the period timekey.OfSession assigns them, the
// user narrows the buckets with a Picker, and Export collects the matching
// receipts into a Plan that can be written as a zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/metrics"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

// Notice is a soft outcome of an export request. It is not an error.
type Notice int

const (
	// NoticeNone means the plan has entries.
	NoticeNone Notice = iota

	// NoticeNothingSelected means no year and no month was picked.
	NoticeNothingSelected

	// NoticeNothingToExport means the selected sessions carry no receipts.
	NoticeNothingToExport
)

func (n Notice) String() string {
	switch n {
	case NoticeNothingSelected:
		return "nothing selected"
	case NoticeNothingToExport:
		return "nothing to export"
	}
	return "ok"
}

func (n Notice) outcome() string {
	return strings.ReplaceAll(n.String(), " ", "_")
}

// Entry is one file in the archive.
type Entry struct {
	Name    string
	Data    []byte
	AddedAt time.Time
}

// Plan is an archive ready to be written.
type Plan struct {
	// Name is the archive name as shown to users; it may contain "/".
	// Use Filename for a name safe on disk or in HTTP headers.
	Name    string
	Entries []Entry
}

// Filename returns Name with unsafe characters replaced.
func (p *Plan) Filename() string {
	return SanitizeFilename(p.Name)
}

// WriteTo writes the plan as a zip archive.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, e := range p.Entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: e.AddedAt,
		}
		f, err := zw.CreateHeader(hdr)
		if err != nil {
			return cw.n, fmt.Errorf("failed to create archive entry %q: %w", e.Name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return cw.n, fmt.Errorf("failed to write archive entry %q: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finish archive: %w", err)
	}
	return cw.n, nil
}

// Export plans the archive of every receipt in the sessions the picker
// matches. A session matches if its year is among the picked years or its
// month among the picked months.
func Export(sessions []*models.CalcSession, p Picker) (*Plan, Notice) {
	b := Bucket(sessions)
	years := p.Years.Resolve(b.YearKeys())
	months := p.Months.Resolve(b.MonthKeys())

	if len(years) == 0 && len(months) == 0 {
		return nil, observe(nil, NoticeNothingSelected)
	}

	yearSet := toSet(years)
	monthSet := toSet(months)

	var matched []*models.CalcSession
	for _, s := range sessions {
		k := timekey.OfSession(s)
		if yearSet[k.YearString()] || monthSet[k.String()] {
			matched = append(matched, s)
		}
	}

	var name string
	if len(years) > 0 {
		name = "receipts_" + strings.Join(years, "_") + ".zip"
	} else {
		shown := make([]string, len(months))
		for i, m := range months {
			shown[i] = displayMonth(m)
		}
		name = "receipts_months_" + strings.Join(shown, "_") + ".zip"
	}

	plan := &Plan{Name: name, Entries: collect(matched)}
	if len(plan.Entries) == 0 {
		return nil, observe(nil, NoticeNothingToExport)
	}
	return plan, observe(plan, NoticeNone)
}

// ExportSession plans the archive of one session's receipts.
func ExportSession(s *models.CalcSession) (*Plan, Notice) {
	plan := &Plan{
		Name:    SessionArchiveName(s.Title),
		Entries: collect([]*models.CalcSession{s}),
	}
	if len(plan.Entries) == 0 {
		return nil, observe(nil, NoticeNothingToExport)
	}
	return plan, observe(plan, NoticeNone)
}

// collect decodes the receipts of sessions in order. Receipts that do not
// decode are skipped. Repeated names get a " (n)" suffix so that no entry
// shadows another on extraction.
func collect(sessions []*models.CalcSession) []Entry {
	var entries []Entry
	seen := make(map[string]int)
	for _, s := range sessions {
		for _, d := range s.Deductions {
			if !d.HasAttachment() {
				continue
			}
			_, data, err := imaging.DecodeDataURI(d.Attachment.DataURI)
			if err != nil {
				slog.Warn("Skipping unreadable receipt",
					"session_id", s.ID,
					"deduction_id", d.ID,
					"error", err,
				)
				continue
			}
			entries = append(entries, Entry{
				Name:    uniqueName(seen, SanitizeFilename(d.Attachment.Filename)),
				Data:    data,
				AddedAt: d.Attachment.AddedAt,
			})
		}
	}
	return entries
}

func uniqueName(seen map[string]int, name string) string {
	if name == "" {
		name = "receipt.jpg"
	}
	seen[name]++
	n := seen[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext
	// the candidate itself may be taken by a stored filename
	for seen[candidate] > 0 {
		n++
		candidate = strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext
	}
	seen[candidate]++
	return candidate
}

func displayMonth(key string) string {
	if k, ok := timekey.Parse(key); ok {
		return k.Display()
	}
	return key
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func observe(p *Plan, n Notice) Notice {
	metrics.ArchiveExports.WithLabelValues(n.outcome()).Inc()
	if p != nil {
		metrics.ArchiveEntries.Observe(float64(len(p.Entries)))
	}
	return n
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
