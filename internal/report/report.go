// Package report renders a summary workbook of calculation sessions.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

const (
	SessionsSheet = "Sessions"
	PeriodsSheet  = "Periods"
)

var sessionHeader = []any{
	"Title", "Period", "Created", "Percent", "Sum",
	"Percent amount", "Deductions", "Net", "Total", "Receipts",
}

var periodHeader = []any{
	"Period", "Sessions", "Sum", "Percent amount", "Deductions", "Net", "Total",
}

// Row is one session with its derived totals rounded for display.
type Row struct {
	SessionID     string
	Title         string
	Period        timekey.Key
	Created       string
	Percent       decimal.Decimal
	Sum           decimal.Decimal
	PercentAmount decimal.Decimal
	Deductions    decimal.Decimal
	Net           decimal.Decimal
	Total         decimal.Decimal
	Receipts      int
}

// PeriodTotal aggregates the rows of one month.
type PeriodTotal struct {
	Period        timekey.Key
	Sessions      int
	Sum           decimal.Decimal
	PercentAmount decimal.Decimal
	Deductions    decimal.Decimal
	Net           decimal.Decimal
	Total         decimal.Decimal
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Rows computes the report rows, newest period first. Sessions of the same
// period keep their input order.
func Rows(sessions []*models.CalcSession) []Row {
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		t := calculator.CalculateSession(s)
		rows = append(rows, Row{
			SessionID:     s.ID,
			Title:         s.Title,
			Period:        timekey.OfSession(s),
			Created:       s.CreatedAt.UTC().Format("2006-01-02"),
			Percent:       round(s.Percent),
			Sum:           round(t.Sum),
			PercentAmount: round(t.PercentAmount),
			Deductions:    round(t.DeductionsSum),
			Net:           round(t.Net),
			Total:         round(t.Total),
			Receipts:      s.AttachmentCount(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Period.Compare(rows[j].Period) > 0
	})
	return rows
}

// Periods sums rows per month, newest first. Sums are taken over the
// rounded row values so the sheet adds up.
func Periods(rows []Row) []PeriodTotal {
	var out []PeriodTotal
	idx := make(map[timekey.Key]int)
	for _, r := range rows {
		i, ok := idx[r.Period]
		if !ok {
			i = len(out)
			idx[r.Period] = i
			out = append(out, PeriodTotal{Period: r.Period})
		}
		p := &out[i]
		p.Sessions++
		p.Sum = p.Sum.Add(r.Sum)
		p.PercentAmount = p.PercentAmount.Add(r.PercentAmount)
		p.Deductions = p.Deductions.Add(r.Deductions)
		p.Net = p.Net.Add(r.Net)
		p.Total = p.Total.Add(r.Total)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Period.Compare(out[j].Period) > 0
	})
	return out
}

// Write renders the workbook for sessions to w.
func Write(w io.Writer, sessions []*models.CalcSession) error {
	f, err := Build(sessions)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build creates the workbook. The caller closes it.
func Build(sessions []*models.CalcSession) (*excelize.File, error) {
	rows := Rows(sessions)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SessionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(PeriodsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeSessions(f, rows, bold, money); err != nil {
		f.Close()
		return nil, err
	}
	if err := writePeriods(f, Periods(rows), bold, money); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSessions(f *excelize.File, rows []Row, bold, money int) error {
	if err := f.SetSheetRow(SessionsSheet, "A1", &sessionHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{
			r.Title,
			r.Period.Display(),
			r.Created,
			r.Percent.InexactFloat64(),
			r.Sum.InexactFloat64(),
			r.PercentAmount.InexactFloat64(),
			r.Deductions.InexactFloat64(),
			r.Net.InexactFloat64(),
			r.Total.InexactFloat64(),
			r.Receipts,
		}
		if err := f.SetSheetRow(SessionsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetCellStyle(SessionsSheet, "A1", "J1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(9, len(rows)+1)
		if err := f.SetCellStyle(SessionsSheet, "E2", last, money); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	if err := f.SetColWidth(SessionsSheet, "A", "A", 32); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(SessionsSheet, "B", "J", 14)
}

func writePeriods(f *excelize.File, periods []PeriodTotal, bold, money int) error {
	if err := f.SetSheetRow(PeriodsSheet, "A1", &periodHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, p := range periods {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{
			p.Period.Display(),
			p.Sessions,
			p.Sum.InexactFloat64(),
			p.PercentAmount.InexactFloat64(),
			p.Deductions.InexactFloat64(),
			p.Net.InexactFloat64(),
			p.Total.InexactFloat64(),
		}
		if err := f.SetSheetRow(PeriodsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetCellStyle(PeriodsSheet, "A1", "G1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if len(periods) > 0 {
		last, _ := excelize.CoordinatesToCellName(7, len(periods)+1)
		if err := f.SetCellStyle(PeriodsSheet, "C2", last, money); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	return f.SetColWidth(PeriodsSheet, "A", "G", 14)
}
