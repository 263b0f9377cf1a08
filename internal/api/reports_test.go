package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
	"github.com/bouwbuddy/bouwbuddy/internal/storage"
)

const testToken = "secret-token"

func newTestHandler(rep *mockReporter, sums SummaryReader) http.Handler {
	return NewAppHandler(AppDeps{Reports: rep, Summaries: sums, Token: testToken})
}

func doRequest(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Type, body.Error.Message
}

func TestHealth_NoAuth(t *testing.T) {
	rec := doRequest(newTestHandler(&mockReporter{}, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestBearerAuth(t *testing.T) {
	h := newTestHandler(&mockReporter{}, nil)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testToken, http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/reports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBearerAuth_EmptyTokenRejectsAll(t *testing.T) {
	h := NewAppHandler(AppDeps{Reports: &mockReporter{}})
	rec := doRequest(h, http.MethodGet, "/reports", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if typ, _ := decodeError(t, rec); typ != "authentication_error" {
		t.Errorf("error type = %q", typ)
	}

	rec = doRequest(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestListReports(t *testing.T) {
	rep := &mockReporter{records: []fieldreport.Record{testRecord("r1", "Jan")}}
	rec := doRequest(newTestHandler(rep, nil), http.MethodGet, "/reports?window=weekly", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got RecordsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Window != fieldreport.WindowWeekly || got.Count != 1 {
		t.Errorf("window/count = %s/%d", got.Window, got.Count)
	}
	if diff := cmp.Diff(rep.records, got.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if !got.From.Before(got.To) {
		t.Errorf("range [%v, %v) is empty", got.From, got.To)
	}
}

func TestListReports_EmptyIsArray(t *testing.T) {
	rec := doRequest(newTestHandler(&mockReporter{}, nil), http.MethodGet, "/reports", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"records":[]`) {
		t.Errorf("body = %s, want an empty records array", rec.Body.String())
	}
}

func TestListReports_Errors(t *testing.T) {
	tests := []struct {
		name     string
		rep      *mockReporter
		target   string
		wantCode int
		wantType string
	}{
		{"bad window", &mockReporter{}, "/reports?window=monthly", http.StatusBadRequest, "invalid_request_error"},
		{"query error", &mockReporter{queryErr: errors.New("db closed")}, "/reports", http.StatusInternalServerError, "api_error"},
		{"export bad window", &mockReporter{}, "/reports/export?window=x", http.StatusBadRequest, "invalid_request_error"},
		{"export query error", &mockReporter{queryErr: errors.New("db closed")}, "/reports/export", http.StatusInternalServerError, "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(newTestHandler(tt.rep, nil), http.MethodGet, tt.target, testToken)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if typ, _ := decodeError(t, rec); typ != tt.wantType {
				t.Errorf("error type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}

func TestExportReports(t *testing.T) {
	rep := &mockReporter{records: []fieldreport.Record{testRecord("r1", "Jan"), testRecord("r2", "Piet"), testRecord("r3", "Klaas")}}
	rec := doRequest(newTestHandler(rep, nil), http.MethodGet, "/reports/export?window=daily", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "reports-daily.jsonl") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	var got []fieldreport.Record
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var r fieldreport.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %d: %v", len(got)+1, err)
		}
		got = append(got, r)
	}
	if diff := cmp.Diff(rep.records, got); diff != "" {
		t.Errorf("exported records mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateReport(t *testing.T) {
	rep := &mockReporter{result: aggregate.Result{
		Outcome:     aggregate.Generated,
		RecordCount: 2,
		Body:        "Report body",
		Media:       aggregate.Media{Items: []aggregate.MediaItem{{Ref: "p1", Caption: "Jan - Acme"}}},
	}}
	rec := doRequest(newTestHandler(rep, nil), http.MethodPost, "/reports/generate?window=weekly", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got GenerateResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := GenerateResponse{
		Window:      fieldreport.WindowWeekly,
		Outcome:     "generated",
		RecordCount: 2,
		Body:        "Report body",
		Media:       []aggregate.MediaItem{{Ref: "p1", Caption: "Jan - Acme"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateReport_Outcomes(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		rep := &mockReporter{result: aggregate.Result{Outcome: aggregate.EmptyWindow}}
		rec := doRequest(newTestHandler(rep, nil), http.MethodPost, "/reports/generate", testToken)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("body = %q, want empty", rec.Body.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		rep := &mockReporter{result: aggregate.Result{Outcome: aggregate.GenerationFailure, Err: errors.New("boom")}}
		rec := doRequest(newTestHandler(rep, nil), http.MethodPost, "/reports/generate", testToken)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
		typ, msg := decodeError(t, rec)
		if typ != "generation_failed" {
			t.Errorf("error type = %q", typ)
		}
		if strings.Contains(msg, "boom") {
			t.Errorf("message leaks backend error: %q", msg)
		}
	})

	t.Run("get not allowed", func(t *testing.T) {
		rec := doRequest(newTestHandler(&mockReporter{}, nil), http.MethodGet, "/reports/generate", testToken)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestListSummaries(t *testing.T) {
	sums := &mockSummaries{sums: []storage.Summary{
		{ID: "s2", Window: "weekly", CreatedAt: time.Date(2024, 5, 7, 18, 0, 0, 0, time.UTC), RecordCount: 9, Body: "week"},
		{ID: "s1", Window: "daily", CreatedAt: time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC), RecordCount: 3, Body: "day"},
	}}
	rec := doRequest(newTestHandler(&mockReporter{}, sums), http.MethodGet, "/summaries?limit=5", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Summaries []storage.Summary `json:"summaries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(sums.sums, got.Summaries); diff != "" {
		t.Errorf("summaries mismatch (-want +got):\n%s", diff)
	}
	if sums.limit != 5 {
		t.Errorf("limit = %d, want 5", sums.limit)
	}
}

func TestListSummaries_Limits(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"", http.StatusOK, defaultSummaryLimit},
		{"?limit=1000", http.StatusOK, maxSummaryLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			sums := &mockSummaries{}
			rec := doRequest(newTestHandler(&mockReporter{}, sums), http.MethodGet, "/summaries"+tt.query, testToken)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if sums.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", sums.limit, tt.wantLimit)
			}
		})
	}
}

func TestListSummaries_Unavailable(t *testing.T) {
	rec := doRequest(newTestHandler(&mockReporter{}, nil), http.MethodGet, "/summaries", testToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListSummaries_Error(t *testing.T) {
	sums := &mockSummaries{err: errors.New("locked")}
	rec := doRequest(newTestHandler(&mockReporter{}, sums), http.MethodGet, "/summaries", testToken)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetSummary(t *testing.T) {
	want := storage.Summary{ID: "s1", Window: "daily", CreatedAt: time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC), RecordCount: 3, Body: "day"}
	sums := &mockSummaries{sums: []storage.Summary{want}}
	h := newTestHandler(&mockReporter{}, sums)

	rec := doRequest(h, http.MethodGet, "/summaries/s1", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got storage.Summary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSummary_Errors(t *testing.T) {
	tests := []struct {
		name     string
		sums     SummaryReader
		wantCode int
		wantType string
	}{
		{"unknown id", &mockSummaries{}, http.StatusNotFound, "not_found"},
		{"store error", &mockSummaries{err: errors.New("locked")}, http.StatusInternalServerError, "api_error"},
		{"no history", nil, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(newTestHandler(&mockReporter{}, tt.sums), http.MethodGet, "/summaries/missing", testToken)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if typ, _ := decodeError(t, rec); typ != tt.wantType {
				t.Errorf("error type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}

func TestGetSummary_RequiresAuth(t *testing.T) {
	rec := doRequest(newTestHandler(&mockReporter{}, &mockSummaries{}), http.MethodGet, "/summaries/s1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
