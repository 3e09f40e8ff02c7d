package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func TestUploadAndList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/documents/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.FormValue("kind") != "checkable" {
				t.Fatalf("expected kind field, got %q", r.FormValue("kind"))
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Fatalf("missing auth header, got %q", got)
			}
			writeEnvelope(w, Document{ID: 7, Filename: "plan.pdf", ProcessingStatus: "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/documents":
			writeEnvelope(w, map[string]any{
				"items": []Document{{ID: 7, Filename: "plan.pdf"}},
				"count": 1,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	doc, err := c.Upload("tok", "checkable", "plan.pdf", strings.NewReader("%PDF-"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.ID != 7 || doc.ProcessingStatus != "pending" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	docs, err := c.GetDocuments("tok", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "plan.pdf" {
		t.Fatalf("unexpected list: %+v", docs)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": 40401, "message": "document not found"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.GetStatus("tok", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != 40401 {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if apiErr.Error() != "document not found" {
		t.Fatalf("unexpected message: %s", apiErr.Error())
	}
}

func TestWaitForReportPollsUntilCompleted(t *testing.T) {
	var statusCalls, reportCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/checks/5/status":
			n := atomic.AddInt32(&statusCalls, 1)
			status := "processing"
			if n >= 3 {
				status = "completed"
			}
			writeEnvelope(w, CheckStatus{DocumentID: 5, ProcessingStatus: status, HasResult: status == "completed"})
		case "/api/v1/reports/5":
			atomic.AddInt32(&reportCalls, 1)
			writeEnvelope(w, Report{DocumentID: 5, ReportNumber: "NK-5", OverallStatus: "pass", ComplianceScore: 100})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	opts := PollOptions{Interval: 10 * time.Millisecond, Ceiling: time.Second}

	report, err := c.WaitForReport(context.Background(), "tok", 5, opts)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if report.ReportNumber != "NK-5" || report.OverallStatus != "pass" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if atomic.LoadInt32(&statusCalls) < 3 {
		t.Fatalf("expected at least 3 status polls, got %d", statusCalls)
	}

	// Reports are immutable; a second fetch comes from the local cache.
	if _, err := c.GetReport("tok", 5); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got := atomic.LoadInt32(&reportCalls); got != 1 {
		t.Fatalf("expected a single report fetch, got %d", got)
	}
}

func TestWaitForReportCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CheckStatus{DocumentID: 9, ProcessingStatus: "processing"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	opts := PollOptions{Interval: 10 * time.Millisecond, Ceiling: 50 * time.Millisecond}

	if _, err := c.WaitForReport(context.Background(), "tok", 9, opts); !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestWaitForReportCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CheckStatus{DocumentID: 9, ProcessingStatus: "processing"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL)
	_, err := c.WaitForReport(ctx, "tok", 9, PollOptions{Interval: time.Second, Ceiling: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForReportSurfacesCheckError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CheckStatus{
			DocumentID:       3,
			ProcessingStatus: "error",
			ProcessingError:  "scoring failed",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.WaitForReport(context.Background(), "tok", 3, PollOptions{Interval: 10 * time.Millisecond, Ceiling: time.Second})
	if !errors.Is(err, ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "scoring failed") {
		t.Fatalf("expected reason in error, got %v", err)
	}
}

func TestRetriesTransient503(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/checks/4/status":
			if atomic.AddInt32(&calls, 1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeEnvelope(w, CheckStatus{DocumentID: 4, ProcessingStatus: "completed", HasResult: true})
		case "/api/v1/reports/4":
			writeEnvelope(w, Report{DocumentID: 4, ReportNumber: "NK-4"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.retryBackoff = time.Millisecond

	report, err := c.WaitForReport(context.Background(), "tok", 4, PollOptions{Interval: 10 * time.Millisecond, Ceiling: 10 * time.Second})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if report.ReportNumber != "NK-4" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 status calls, got %d", calls)
	}
}

func Test503SurfacesAfterCappedRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.retryBackoff = time.Millisecond

	_, err := c.GetStatus("tok", 4)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if apiErr.Error() != "service temporarily unavailable" {
		t.Fatalf("unexpected message: %q", apiErr.Error())
	}
	if got := atomic.LoadInt32(&calls); got != 1+unavailableRetries {
		t.Fatalf("expected %d attempts, got %d", 1+unavailableRetries, got)
	}

	// The poll loop propagates the unavailability instead of spinning until
	// the ceiling.
	atomic.StoreInt32(&calls, 0)
	_, err = c.WaitForReport(context.Background(), "tok", 4, PollOptions{Interval: 10 * time.Millisecond, Ceiling: time.Second})
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError from WaitForReport, got %v", err)
	}
}

func TestUploadRetriesWithBodyRewind(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form on retry: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file on retry: %v", err)
		} else {
			f.Close()
		}
		writeEnvelope(w, Document{ID: 11, Filename: "plan.pdf"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.retryBackoff = time.Millisecond

	doc, err := c.Upload("tok", "checkable", "plan.pdf", strings.NewReader("%PDF-"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.ID != 11 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestPollOptionsFromSeconds(t *testing.T) {
	opts := PollOptionsFromSeconds(4, 600)
	if opts.Interval != 4*time.Second || opts.Ceiling != 600*time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}
	// Non-positive values fall through to WaitForReport's defaults.
	opts = PollOptionsFromSeconds(0, -1)
	if opts.Interval != 0 || opts.Ceiling > 0 {
		t.Fatalf("unexpected zero-value handling: %+v", opts)
	}
}

func TestStartCheckDropsCachedReport(t *testing.T) {
	var reportCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/reports/6":
			n := atomic.AddInt32(&reportCalls, 1)
			writeEnvelope(w, Report{DocumentID: 6, ReportNumber: fmt.Sprintf("NK-6-%d", n)})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/checks/6":
			writeEnvelope(w, CheckStarted{DocumentID: 6, Status: "started"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	first, err := c.GetReport("tok", 6)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.StartCheck("tok", 6, "flat"); err != nil {
		t.Fatalf("start check: %v", err)
	}
	second, err := c.GetReport("tok", 6)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if first.ReportNumber == second.ReportNumber {
		t.Fatalf("re-check must not serve the stale cached report: %s", second.ReportNumber)
	}
	if got := atomic.LoadInt32(&reportCalls); got != 2 {
		t.Fatalf("expected 2 report fetches, got %d", got)
	}
}

func TestDeleteDropsCachedReport(t *testing.T) {
	var reportCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/reports/2":
			atomic.AddInt32(&reportCalls, 1)
			writeEnvelope(w, Report{DocumentID: 2, ReportNumber: "NK-2"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/documents/2":
			writeEnvelope(w, nil)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.GetReport("tok", 2); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := c.Delete("tok", 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetReport("tok", 2); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := atomic.LoadInt32(&reportCalls); got != 2 {
		t.Fatalf("expected cache invalidation on delete, got %d fetches", got)
	}
}
