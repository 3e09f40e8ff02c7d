package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client calls the normcontrol service over HTTP. Transient 503 responses
// are retried a small fixed number of times with exponential backoff before
// the unavailability is surfaced to the caller.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	retryBackoff time.Duration

	mu      sync.Mutex
	reports map[uint]*Report
}

const unavailableRetries = 3

const (
	retryBackoffInitial = 1 * time.Second
	retryBackoffMax     = 32 * time.Second
)

// APIError represents a service error response.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a normcontrol service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		retryBackoff: retryBackoffInitial,
		reports:      make(map[uint]*Report),
	}
}

// Document is the client-side view of an uploaded document.
type Document struct {
	ID               uint   `json:"id"`
	Filename         string `json:"filename"`
	Fingerprint      string `json:"fingerprint"`
	Kind             string `json:"kind"`
	Format           string `json:"format"`
	ProcessingStatus string `json:"processing_status"`
	ReviewStatus     string `json:"review_status"`
	Deduplicated     bool   `json:"deduplicated,omitempty"`
}

// CheckStarted is returned when a validation check is requested.
type CheckStarted struct {
	DocumentID uint   `json:"document_id"`
	Status     string `json:"status"`
}

// CheckStatus is the async progress of a document's validation.
type CheckStatus struct {
	DocumentID       uint   `json:"document_id"`
	ProcessingStatus string `json:"processing_status"`
	ProcessingError  string `json:"processing_error,omitempty"`
	HasResult        bool   `json:"has_result"`
}

// ReportFinding is one violation inside a compliance report.
type ReportFinding struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
	ClauseID       string `json:"clause_id,omitempty"`
}

// Report is the compiled compliance report for a document.
type Report struct {
	DocumentID       uint            `json:"document_id"`
	ReportNumber     string          `json:"report_number"`
	OverallStatus    string          `json:"overall_status"`
	ComplianceScore  float64         `json:"compliance_score"`
	TotalFindings    int             `json:"total_findings"`
	CriticalFindings int             `json:"critical_count"`
	HighFindings     int             `json:"high_count"`
	MediumFindings   int             `json:"medium_count"`
	LowFindings      int             `json:"low_count"`
	InfoFindings     int             `json:"info_count"`
	Summary          string          `json:"summary"`
	Recommendation   string          `json:"recommendation"`
	AnalyzedAt       string          `json:"analyzed_at"`
	Findings         []ReportFinding `json:"findings"`
}

// Upload sends a document file to the service. kind is "checkable" or
// "reference".
func (c *Client) Upload(token, kind, filename string, r io.Reader) (Document, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Document{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return Document{}, err
	}
	if err := writer.WriteField("kind", kind); err != nil {
		return Document{}, err
	}
	if err := writer.Close(); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/documents/upload", body)
	if err != nil {
		return Document{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var doc Document
	if err := c.do(req, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// GetDocuments lists uploaded documents of the given kind; kind may be empty
// to list everything.
func (c *Client) GetDocuments(token, kind string) ([]Document, error) {
	path := c.baseURL + "/api/v1/documents"
	if kind != "" {
		path += "?kind=" + kind
	}
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)

	var resp listDocumentsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Delete removes a document together with its elements, results and reports.
func (c *Client) Delete(token string, id uint) error {
	path := fmt.Sprintf("%s/api/v1/documents/%d", c.baseURL, id)
	req, err := http.NewRequest(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	c.mu.Lock()
	delete(c.reports, id)
	c.mu.Unlock()
	return c.do(req, nil)
}

// StartCheck requests a validation run; mode is "flat" or "hierarchical".
// A re-check produces a new report, so the locally cached one is dropped.
func (c *Client) StartCheck(token string, id uint, mode string) (CheckStarted, error) {
	c.mu.Lock()
	delete(c.reports, id)
	c.mu.Unlock()

	payload, err := json.Marshal(map[string]string{"mode": mode})
	if err != nil {
		return CheckStarted{}, err
	}
	path := fmt.Sprintf("%s/api/v1/checks/%d", c.baseURL, id)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return CheckStarted{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", "application/json")

	var started CheckStarted
	if err := c.do(req, &started); err != nil {
		return CheckStarted{}, err
	}
	return started, nil
}

// GetStatus fetches the current processing status of a check.
func (c *Client) GetStatus(token string, id uint) (CheckStatus, error) {
	path := fmt.Sprintf("%s/api/v1/checks/%d/status", c.baseURL, id)
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return CheckStatus{}, err
	}
	addAuthHeader(req, token)

	var status CheckStatus
	if err := c.do(req, &status); err != nil {
		return CheckStatus{}, err
	}
	return status, nil
}

// GetReport returns the latest compliance report for a document. Reports are
// immutable once compiled, so a previously fetched report is served from the
// local cache without another round trip.
func (c *Client) GetReport(token string, id uint) (*Report, error) {
	c.mu.Lock()
	if cached, ok := c.reports[id]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	path := fmt.Sprintf("%s/api/v1/reports/%d", c.baseURL, id)
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)

	var report Report
	if err := c.do(req, &report); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.reports[id] = &report
	c.mu.Unlock()
	return &report, nil
}

// DownloadReport fetches the exported report in the given format
// (json, docx or pdf) as raw bytes.
func (c *Client) DownloadReport(token string, id uint, format string) ([]byte, error) {
	path := fmt.Sprintf("%s/api/v1/reports/%d/download?format=%s", c.baseURL, id, format)
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// send issues the request, retrying a 503 up to unavailableRetries times
// with doubling backoff. Any other response, including the final 503 once
// the attempts are spent, is returned to the caller as-is.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	backoff := c.retryBackoff
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusServiceUnavailable || attempt >= unavailableRetries {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		time.Sleep(backoff)
		backoff *= 2
		if backoff > retryBackoffMax {
			backoff = retryBackoffMax
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func decodeAPIError(resp *http.Response) error {
	if resp.StatusCode == http.StatusServiceUnavailable {
		return &APIError{Status: resp.StatusCode, Message: "service temporarily unavailable"}
	}
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Message
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: msg}
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

type listDocumentsResponse struct {
	Items []Document `json:"items"`
	Count int        `json:"count"`
}
