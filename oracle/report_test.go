package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

const soapResponseTemplate = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body>` +
	`<ns2:response xmlns:ns2="http://xmlns.oracle.com/oxp/service/PublicReportService">%s</ns2:response>` +
	`</env:Body></env:Envelope>`

func soapResponse(inner string) string {
	return fmt.Sprintf(soapResponseTemplate, inner)
}

func chunkResponse(data string, offset int) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(data))
	return soapResponse(fmt.Sprintf("<ns2:reportDataChunk>%s</ns2:reportDataChunk><ns2:reportDataOffset>%d</ns2:reportDataOffset>", encoded, offset))
}

type reportServer struct {
	mu        sync.Mutex
	bodies    []string
	auth      []string
	chunks    map[string]string
	fileID    string
	failFirst int
}

func (s *reportServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	fail := s.failFirst > 0
	if fail {
		s.failFirst--
	}
	s.mu.Unlock()

	if r.URL.Path != reportServicePath {
		http.NotFound(w, r)
		return
	}
	if fail {
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	text := string(body)
	switch {
	case strings.Contains(text, "<pub:runReport>"):
		_, _ = io.WriteString(w, soapResponse("<ns2:reportFileID>"+s.fileID+"</ns2:reportFileID>"))
	case strings.Contains(text, "<pub:downloadReportDataChunk>"):
		for marker, resp := range s.chunks {
			if strings.Contains(text, marker) {
				_, _ = io.WriteString(w, resp)
				return
			}
		}
		http.Error(w, "unexpected chunk", http.StatusBadRequest)
	default:
		http.Error(w, "unexpected body", http.StatusBadRequest)
	}
}

func newTestReportClient(t *testing.T, baseURL string, tokens TokenProvider, runs RunRecorder) *ReportClient {
	t.Helper()
	client, err := NewReportClient(ReportConfig{
		BaseURL:      baseURL + "/",
		DownloadsDir: t.TempDir(),
		ChunkSize:    2,
		Tokens:       tokens,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		Retry:        RetryPolicy{MaxAttempts: 3},
		Recorder:     runs,
		Now:          func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewReportClient() error = %v", err)
	}
	return client
}

func TestReportClientRunDownloadsAllChunks(t *testing.T) {
	srv := &reportServer{
		fileID: "file-1",
		chunks: map[string]string{
			"<pub:beginIdx>0</pub:beginIdx>": chunkResponse("A,B\n", 2),
			"<pub:beginIdx>2</pub:beginIdx>": chunkResponse("1,2\n", -1),
		},
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	runs := &recordingRuns{}
	client := newTestReportClient(t, ts.URL, &staticTokens{token: "tok"}, runs)

	report, err := client.Run(context.Background(), "/Custom/Reports/My Report.xdo", map[string]string{"P_B": "2", "P_A": "a&b"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(report.Data) != "A,B\n1,2\n" {
		t.Fatalf("report.Data = %q", report.Data)
	}
	if report.Name != "My Report" {
		t.Fatalf("report.Name = %q", report.Name)
	}
	if !regexp.MustCompile(`My Report_20250304_050607_[0-9a-f]{8}\.csv$`).MatchString(report.FilePath) {
		t.Fatalf("report.FilePath = %q", report.FilePath)
	}
	saved, err := os.ReadFile(report.FilePath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(saved) != string(report.Data) {
		t.Fatalf("saved = %q", saved)
	}

	if len(srv.bodies) != 3 {
		t.Fatalf("requests = %d, want 3", len(srv.bodies))
	}
	run := srv.bodies[0]
	if !strings.Contains(run, "<pub:reportAbsolutePath>/Custom/Reports/My Report.xdo</pub:reportAbsolutePath>") {
		t.Fatalf("runReport body missing path: %s", run)
	}
	if strings.Index(run, "P_A") > strings.Index(run, "P_B") {
		t.Fatalf("parameters not sorted: %s", run)
	}
	if !strings.Contains(run, "a&amp;b") {
		t.Fatalf("parameter not escaped: %s", run)
	}
	if srv.auth[0] != "Bearer tok" {
		t.Fatalf("Authorization = %q", srv.auth[0])
	}

	if len(runs.runs) != 1 {
		t.Fatalf("recorded runs = %d", len(runs.runs))
	}
	rec := runs.runs[0]
	if rec.Status != RunStatusSucceeded || rec.Bytes != int64(len(report.Data)) || rec.FilePath != report.FilePath {
		t.Fatalf("run record = %+v", rec)
	}
	if rec.Parameters["P_A"] != "a&b" {
		t.Fatalf("run params = %v", rec.Parameters)
	}
}

func TestReportClientRetriesTransientStatus(t *testing.T) {
	srv := &reportServer{
		fileID:    "file-2",
		failFirst: 1,
		chunks: map[string]string{
			"<pub:beginIdx>0</pub:beginIdx>": chunkResponse("X\n", -1),
		},
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := newTestReportClient(t, ts.URL, &staticTokens{token: "tok"}, nil)
	report, err := client.Run(context.Background(), "/r.xdo", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(report.Data) != "X\n" {
		t.Fatalf("report.Data = %q", report.Data)
	}
	if len(srv.bodies) != 3 {
		t.Fatalf("requests = %d, want 3", len(srv.bodies))
	}
}

func TestReportClientReauthenticatesOnUnauthorized(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "<pub:runReport>") {
			_, _ = io.WriteString(w, soapResponse("<ns2:reportFileID>f</ns2:reportFileID>"))
			return
		}
		_, _ = io.WriteString(w, chunkResponse("", -1))
	}))
	defer ts.Close()

	tokens := &staticTokens{token: "stale"}
	client := newTestReportClient(t, ts.URL, tokens, nil)
	report, err := client.Run(context.Background(), "/r.xdo", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Data) != 0 {
		t.Fatalf("report.Data = %q", report.Data)
	}
	if tokens.invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", tokens.invalidations)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestReportClientSOAPFault(t *testing.T) {
	const fault = `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body>` +
		`<env:Fault><env:Code><env:Value>env:Receiver</env:Value></env:Code>` +
		`<env:Reason><env:Text xml:lang="en">Report not found</env:Text></env:Reason></env:Fault>` +
		`</env:Body></env:Envelope>`

	for _, status := range []int{http.StatusOK, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var requests atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(status)
				_, _ = io.WriteString(w, fault)
			}))
			defer ts.Close()

			runs := &recordingRuns{}
			client := newTestReportClient(t, ts.URL, &staticTokens{token: "tok"}, runs)
			_, err := client.Run(context.Background(), "/missing.xdo", nil)
			toolErr, ok := tool.ToolErrorFrom(err)
			if !ok || toolErr.Code != tool.ToolErrorCodeUpstreamFailure || toolErr.Retryable {
				t.Fatalf("error = %v, want non-retryable UPSTREAM_FAILURE", err)
			}
			if !strings.Contains(toolErr.Message, "Report not found") || strings.Contains(toolErr.Message, "<env:") {
				t.Fatalf("message = %q, want the fault text only", toolErr.Message)
			}
			if got := requests.Load(); got != 1 {
				t.Fatalf("requests = %d, want 1 (faults are not retried)", got)
			}
			if len(runs.runs) != 1 || runs.runs[0].Status != RunStatusFailed {
				t.Fatalf("runs = %+v", runs.runs)
			}
		})
	}
}

func TestReportClientRetriesServerErrorWithoutFault(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "<html>gateway down</html>", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := newTestReportClient(t, ts.URL, &staticTokens{token: "tok"}, nil)
	_, err := client.Run(context.Background(), "/r.xdo", nil)
	toolErr, ok := tool.ToolErrorFrom(err)
	if !ok || toolErr.Code != tool.ToolErrorCodeUpstreamFailure || !toolErr.Retryable {
		t.Fatalf("error = %v, want retryable UPSTREAM_FAILURE", err)
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
}

func TestReportClientUpstreamStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request body", http.StatusBadRequest)
	}))
	defer ts.Close()

	client := newTestReportClient(t, ts.URL, &staticTokens{token: "tok"}, nil)
	_, err := client.Run(context.Background(), "/r.xdo", nil)
	toolErr, ok := tool.ToolErrorFrom(err)
	if !ok {
		t.Fatalf("error = %v, want ToolError", err)
	}
	if toolErr.Code != tool.ToolErrorCodeUpstreamFailure || toolErr.Retryable {
		t.Fatalf("toolErr = %+v", toolErr)
	}
	if toolErr.Details["status_code"] != http.StatusBadRequest {
		t.Fatalf("details = %v", toolErr.Details)
	}
	if !strings.Contains(toolErr.Message, "status 400") {
		t.Fatalf("message = %q", toolErr.Message)
	}
}

func TestReportName(t *testing.T) {
	if got := ReportName("/Custom/A/B/OrderCount_Rep.xdo"); got != "OrderCount_Rep" {
		t.Fatalf("ReportName() = %q", got)
	}
}

func TestNewReportClientValidates(t *testing.T) {
	if _, err := NewReportClient(ReportConfig{Tokens: &staticTokens{}}); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := NewReportClient(ReportConfig{BaseURL: "https://x"}); err == nil {
		t.Fatal("expected error for missing token provider")
	}
	client, err := NewReportClient(ReportConfig{BaseURL: "https://x/", Tokens: &staticTokens{}, DownloadsDir: filepath.Join(t.TempDir(), "d")})
	if err != nil {
		t.Fatalf("NewReportClient() error = %v", err)
	}
	if client.endpoint != "https://x"+reportServicePath {
		t.Fatalf("endpoint = %q", client.endpoint)
	}
	if client.chunkSize != defaultChunkSize {
		t.Fatalf("chunkSize = %d", client.chunkSize)
	}
}
