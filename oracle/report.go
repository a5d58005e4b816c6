package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

const (
	reportServicePath   = "/xmlpserver/services/PublicReportWSSService"
	soapContentType     = "application/soap+xml;charset=UTF-8"
	defaultChunkSize    = 5000
	reportFileTimestamp = "20060102_150405"
)

// ReportRunner runs a BI Publisher report and returns its output.
type ReportRunner interface {
	Run(ctx context.Context, reportPath string, params map[string]string) (*Report, error)
}

// Report is the downloaded output of one report run.
type Report struct {
	Path     string
	Name     string
	FilePath string
	Data     []byte
}

// ReportConfig configures a ReportClient.
type ReportConfig struct {
	BaseURL      string
	DownloadsDir string
	ChunkSize    int
	Tokens       TokenProvider
	HTTPClient   *http.Client
	Retry        RetryPolicy
	Recorder     RunRecorder
	Logger       *slog.Logger
	Now          func() time.Time
}

// ReportClient runs reports through the PublicReportWSSService SOAP API.
type ReportClient struct {
	endpoint     string
	downloadsDir string
	chunkSize    int
	req          *requester
	recorder     RunRecorder
	logger       *slog.Logger
	now          func() time.Time
}

var _ ReportRunner = (*ReportClient)(nil)

// NewReportClient validates cfg and returns a ReportClient.
func NewReportClient(cfg ReportConfig) (*ReportClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("oracle report: base url is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("oracle report: token provider is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = HTTPClient(180 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.DownloadsDir) == "" {
		cfg.DownloadsDir = os.TempDir()
	}
	return &ReportClient{
		endpoint:     base + reportServicePath,
		downloadsDir: cfg.DownloadsDir,
		chunkSize:    cfg.ChunkSize,
		req: &requester{
			client:   cfg.HTTPClient,
			tokens:   cfg.Tokens,
			retry:    cfg.Retry,
			logger:   cfg.Logger,
			classify: soapStatusError,
		},
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// ReportName returns the report file name without directory or .xdo suffix.
func ReportName(reportPath string) string {
	return strings.TrimSuffix(path.Base(reportPath), ".xdo")
}

// Run executes reportPath with params, downloads every data chunk and saves
// the output under the downloads directory.
func (c *ReportClient) Run(ctx context.Context, reportPath string, params map[string]string) (*Report, error) {
	started := c.now()
	logger := c.logger.With("report", reportPath)
	logger.Info("running report", "parameters", params)

	report, err := c.run(ctx, reportPath, params, logger)

	record := RunRecord{
		ID:         uuid.NewString(),
		ReportPath: reportPath,
		Parameters: maps.Clone(params),
		Status:     RunStatusSucceeded,
		StartedAt:  started,
		Duration:   c.now().Sub(started),
	}
	if report != nil {
		record.FilePath = report.FilePath
		record.Bytes = int64(len(report.Data))
	}
	if err != nil {
		record.Status = RunStatusFailed
		record.Error = err.Error()
	}
	if c.recorder != nil {
		// Recording runs after the tool context may have ended.
		if recErr := c.recorder.RecordRun(context.WithoutCancel(ctx), record); recErr != nil {
			logger.Warn("record report run failed", "error", recErr)
		}
	}
	if err != nil {
		return nil, err
	}
	logger.Info("report download complete", "bytes", len(report.Data), "file", report.FilePath)
	return report, nil
}

func (c *ReportClient) run(ctx context.Context, reportPath string, params map[string]string, logger *slog.Logger) (*Report, error) {
	body, err := c.call(ctx, "runReport", runReportEnvelope(reportPath, params))
	if err != nil {
		return nil, err
	}
	scanned, err := scanSOAP(body, "reportFileID")
	if err != nil {
		return nil, soapError("runReport", err)
	}
	fileID := scanned.values["reportFileID"]
	if fileID == "" {
		return nil, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, "could not find reportFileID in response", false, nil)
	}
	logger.Debug("report file id received", "file_id", fileID)

	var data bytes.Buffer
	for beginIdx := 0; ; beginIdx += c.chunkSize {
		logger.Debug("downloading data chunk", "begin_idx", beginIdx)
		body, err := c.call(ctx, "downloadReportDataChunk", downloadChunkEnvelope(fileID, beginIdx, c.chunkSize))
		if err != nil {
			return nil, err
		}
		chunk, offset, err := parseChunk(body)
		if err != nil {
			return nil, err
		}
		data.Write(chunk)
		if offset == -1 {
			break
		}
	}

	report := &Report{
		Path: reportPath,
		Name: ReportName(reportPath),
		Data: data.Bytes(),
	}
	filePath, err := c.save(report.Name, report.Data)
	if err != nil {
		return nil, err
	}
	report.FilePath = filePath
	return report, nil
}

func (c *ReportClient) call(ctx context.Context, operation string, envelope []byte) ([]byte, error) {
	res, err := c.req.do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", soapContentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return res.body, nil
}

func parseChunk(body []byte) ([]byte, int, error) {
	scanned, err := scanSOAP(body, "reportDataChunk", "reportDataOffset")
	if err != nil {
		return nil, 0, soapError("downloadReportDataChunk", err)
	}
	rawOffset, ok := scanned.values["reportDataOffset"]
	if !ok {
		return nil, 0, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, "could not find reportDataOffset in response", false, nil)
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil {
		return nil, 0, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, fmt.Sprintf("invalid reportDataOffset %q", rawOffset), false, err)
	}
	encoded := scanned.values["reportDataChunk"]
	if encoded == "" {
		return nil, offset, nil
	}
	chunk, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, 0, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, "decode report data chunk", false, err)
	}
	return chunk, offset, nil
}

// soapStatusError reports a SOAP fault carried by a 5xx response as a
// permanent upstream failure with the fault text. BI Publisher answers bad
// report paths and parameters this way; retrying them cannot succeed.
func soapStatusError(operation string, status int, body []byte) *tool.ToolError {
	if status >= http.StatusInternalServerError {
		if _, err := scanSOAP(body); errors.Is(err, errSOAPFault) {
			return tool.WithDetails(soapError(operation, err), map[string]any{"status_code": status})
		}
	}
	return statusError(operation, status, body)
}

func soapError(operation string, err error) *tool.ToolError {
	if errors.Is(err, errSOAPFault) {
		return tool.NewToolError(tool.ToolErrorCodeUpstreamFailure, fmt.Sprintf("%s: %v", operation, err), false, err)
	}
	return tool.NewToolError(tool.ToolErrorCodeDecodeFailure, fmt.Sprintf("%s: %v", operation, err), false, err)
}

func (c *ReportClient) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(c.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}
	filename := fmt.Sprintf("%s_%s_%s.csv", name, c.now().Format(reportFileTimestamp), uuid.NewString()[:8])
	target := filepath.Join(c.downloadsDir, filename)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return target, nil
}
