package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
	"github.com/bouwbuddy/bouwbuddy/internal/storage"
)

const (
	defaultSummaryLimit = 20
	maxSummaryLimit     = 200
)

// Reporter reads report windows and generates reports.
type Reporter interface {
	Records(ctx context.Context, w fieldreport.Window) (fieldreport.TimeRange, []fieldreport.Record, error)
	Generate(ctx context.Context, w fieldreport.Window) aggregate.Result
}

// SummaryReader reads the report history.
type SummaryReader interface {
	ListSummaries(ctx context.Context, limit int) ([]storage.Summary, error)
	GetSummary(ctx context.Context, id string) (storage.Summary, error)
}

type AppDeps struct {
	Reports   Reporter
	Summaries SummaryReader // optional; /summaries answers 404 without it
	Token     string
}

// RecordsResponse is the body of GET /reports.
type RecordsResponse struct {
	Window  fieldreport.Window   `json:"window"`
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	Count   int                  `json:"count"`
	Records []fieldreport.Record `json:"records"`
}

// GenerateResponse is the body of a successful POST /reports/generate.
type GenerateResponse struct {
	Window      fieldreport.Window    `json:"window"`
	Outcome     string                `json:"outcome"`
	RecordCount int                   `json:"record_count"`
	Body        string                `json:"body"`
	Media       []aggregate.MediaItem `json:"media"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/reports", handleListReports(deps))
		r.Get("/reports/export", handleExportReports(deps))
		r.Post("/reports/generate", handleGenerateReport(deps))
		r.Get("/summaries", handleListSummaries(deps))
		r.Get("/summaries/{id}", handleGetSummary(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func windowParam(w http.ResponseWriter, r *http.Request) (fieldreport.Window, bool) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return fieldreport.WindowDaily, true
	}
	win, err := fieldreport.ParseWindow(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return "", false
	}
	return win, true
}

func handleListReports(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := windowParam(w, r)
		if !ok {
			return
		}
		tr, recs, err := deps.Reports.Records(r.Context(), win)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to query reports: %v", err)
			return
		}
		if recs == nil {
			recs = []fieldreport.Record{}
		}
		writeJSON(w, http.StatusOK, RecordsResponse{
			Window:  win,
			From:    tr.From,
			To:      tr.To,
			Count:   len(recs),
			Records: recs,
		})
	}
}

func handleExportReports(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := windowParam(w, r)
		if !ok {
			return
		}
		_, recs, err := deps.Reports.Records(r.Context(), win)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to query reports: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "reports-"+string(win)+".jsonl"))
		w.WriteHeader(http.StatusOK)
		enc := json.NewEncoder(w)
		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				return
			}
		}
	}
}

func handleGenerateReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := windowParam(w, r)
		if !ok {
			return
		}

		res := deps.Reports.Generate(r.Context(), win)
		switch res.Outcome {
		case aggregate.EmptyWindow:
			w.WriteHeader(http.StatusNoContent)
		case aggregate.GenerationFailure:
			httpError(w, http.StatusBadGateway, "generation_failed", "report generation failed, try again later")
		default:
			media := res.Media.Items
			if media == nil {
				media = []aggregate.MediaItem{}
			}
			writeJSON(w, http.StatusOK, GenerateResponse{
				Window:      res.Window,
				Outcome:     res.Outcome.String(),
				RecordCount: res.RecordCount,
				Body:        res.Body,
				Media:       media,
			})
		}
	}
}

func handleListSummaries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Summaries == nil {
			httpError(w, http.StatusNotFound, "not_found", "report history is not kept by this server")
			return
		}

		limit := defaultSummaryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = min(n, maxSummaryLimit)
		}

		sums, err := deps.Summaries.ListSummaries(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list summaries: %v", err)
			return
		}
		if sums == nil {
			sums = []storage.Summary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"summaries": sums})
	}
}

func handleGetSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Summaries == nil {
			httpError(w, http.StatusNotFound, "not_found", "report history is not kept by this server")
			return
		}

		id := chi.URLParam(r, "id")
		sum, err := deps.Summaries.GetSummary(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "summary %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get summary: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
