package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmynk/tithe/internal/models"
)

func session(id, tag string, percent float64, items []float64, deductions ...float64) *models.CalcSession {
	s := &models.CalcSession{
		ID:        id,
		Title:     "Salary " + id,
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Percent:   percent,
		TimeTag:   tag,
	}
	for _, v := range items {
		s.Items = append(s.Items, models.CalcItem{ID: "i", Value: v})
	}
	for _, d := range deductions {
		s.Deductions = append(s.Deductions, models.Deduction{ID: "d", Amount: d})
	}
	return s
}

func TestRows(t *testing.T) {
	sessions := []*models.CalcSession{
		session("a", "2024-12", 10, []float64{100, 200}, 5, 10),
		session("b", "2025-09", 12.5, []float64{33.333, 0}),
		session("c", "9/2025", 10, []float64{10, 20}, 25, 15),
	}

	rows := Rows(sessions)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	// newest period first, stable within a period
	wantOrder := []string{"b", "c", "a"}
	for i, id := range wantOrder {
		if rows[i].SessionID != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].SessionID, id)
		}
	}

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"b sum", rows[0].Sum, "33.33"},
		{"b percent amount", rows[0].PercentAmount, "4.17"},
		{"c net", rows[1].Net, "-37"},
		{"a total", rows[2].Total, "315"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			if !tt.got.Equal(want) {
				t.Errorf("got %s, want %s", tt.got, want)
			}
		})
	}
}

func TestPeriods(t *testing.T) {
	rows := Rows([]*models.CalcSession{
		session("a", "2025-09", 10, []float64{100, 200}, 5, 10),
		session("b", "2024-12", 10, []float64{50, 50}),
		session("c", "2025-09", 10, []float64{10, 20}, 25, 15),
	})

	periods := Periods(rows)
	if len(periods) != 2 {
		t.Fatalf("len(periods) = %d, want 2", len(periods))
	}
	p := periods[0]
	if p.Period.String() != "2025-09" || p.Sessions != 2 {
		t.Errorf("periods[0] = %+v", p)
	}
	if !p.Total.Equal(decimal.NewFromInt(315 - 7)) {
		t.Errorf("total = %s, want 308", p.Total)
	}
	if !p.Net.Equal(decimal.NewFromInt(15 - 37)) {
		t.Errorf("net = %s, want -22", p.Net)
	}
	if periods[1].Period.String() != "2024-12" {
		t.Errorf("periods[1] = %s", periods[1].Period)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []*models.CalcSession{
		session("a", "2025-09", 10, []float64{100, 200}, 5, 10),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SessionsSheet)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0][0] != "Title" || rows[1][0] != "Salary a" || rows[1][1] != "09/2025" {
		t.Errorf("rows = %v", rows)
	}

	periods, err := f.GetRows(PeriodsSheet)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(periods) != 2 || periods[1][0] != "09/2025" || periods[1][1] != "1" {
		t.Errorf("periods = %v", periods)
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a workbook")
	}
}
