package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/tithe/internal/archive"
	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/report"
	"github.com/mmynk/tithe/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Downloads serves receipt archives, single receipts and the summary
// workbook over plain HTTP. Routes expect a principal in the request
// context (see middleware.RequireBearer).
type Downloads struct {
	store storage.Store
}

func NewDownloads(store storage.Store) *Downloads {
	return &Downloads{store: store}
}

// Routes returns the download routes, to be mounted under /api.
func (d *Downloads) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/archive", d.handleArchive)
	r.Get("/sessions/{id}/archive", d.handleSessionArchive)
	r.Get("/sessions/{id}/deductions/{did}/attachment", d.handleAttachment)
	r.Get("/report.xlsx", d.handleReport)
	return r
}

// handleArchive exports the receipts of the picked years or months.
//
//	?years=2024,2025 | ?months=2025-09,9/2024 | ?all_years=1 | ?all_months=1
func (d *Downloads) handleArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years := splitList(q["years"])
	months := splitList(q["months"])
	allYears := q.Get("all_years") != ""
	allMonths := q.Get("all_months") != ""

	if (len(years) > 0 || allYears) && (len(months) > 0 || allMonths) {
		writeError(w, http.StatusBadRequest, "years and months cannot be combined")
		return
	}

	sessions, err := d.store.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var p archive.Picker
	switch {
	case allYears:
		p.ToggleAllYears(archive.Bucket(sessions))
	case allMonths:
		p.ToggleAllMonths(archive.Bucket(sessions))
	case len(years) > 0:
		p.PickYears(years...)
	case len(months) > 0:
		p.PickMonths(months...)
	}

	plan, notice := archive.Export(sessions, p)
	writePlan(w, r, plan, notice)
}

func (d *Downloads) handleSessionArchive(w http.ResponseWriter, r *http.Request) {
	s, err := d.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	plan, notice := archive.ExportSession(s)
	writePlan(w, r, plan, notice)
}

func (d *Downloads) handleAttachment(w http.ResponseWriter, r *http.Request) {
	s, err := d.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	did := chi.URLParam(r, "did")
	for _, ded := range s.Deductions {
		if ded.ID != did {
			continue
		}
		if !ded.HasAttachment() {
			writeError(w, http.StatusNotFound, "deduction has no receipt")
			return
		}
		_, data, err := imaging.DecodeDataURI(ded.Attachment.DataURI)
		if err != nil {
			slog.Error("Stored receipt is unreadable", "session_id", s.ID, "deduction_id", did, "error", err)
			writeError(w, http.StatusInternalServerError, "stored receipt is unreadable")
			return
		}
		// every stored receipt went through the compressor
		w.Header().Set("Content-Type", imaging.Mime)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Disposition", disposition(archive.SanitizeFilename(ded.Attachment.Filename)))
		w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, "deduction not found")
}

func (d *Downloads) handleReport(w http.ResponseWriter, r *http.Request) {
	sessions, err := d.store.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", disposition("tithe-report.xlsx"))
	if err := report.Write(w, sessions); err != nil {
		slog.Error("Failed to write report", "error", err)
	}
}

// writePlan streams the archive, or reports the notice as JSON when there is
// nothing to download.
func writePlan(w http.ResponseWriter, r *http.Request, plan *archive.Plan, notice archive.Notice) {
	if notice != archive.NoticeNone {
		writeJSON(w, http.StatusOK, map[string]string{"notice": notice.String()})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", disposition(plan.Filename()))
	n, err := plan.WriteTo(w)
	if err != nil {
		slog.Error("Archive download interrupted", "path", r.URL.Path, "bytes", n, "error", err)
		return
	}
	slog.Info("Archive downloaded", "name", plan.Name, "entries", len(plan.Entries), "bytes", n)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("Store request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
	}
}

func disposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
