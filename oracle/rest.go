package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

const (
	scmAPIPath       = "/fscmRestApi/resources/11.13.18.05"
	hcmLocationsPath = "/hcmRestApi/resources/11.13.18.05/locationsV2"

	// LocationsPageSize is the page size used when listing locations.
	LocationsPageSize = 500

	defaultExportPollInterval = 10 * time.Second
	defaultExportPollAttempts = 60
)

// FusionConfig configures a FusionClient.
type FusionConfig struct {
	BaseURL    string
	Tokens     TokenProvider
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     *slog.Logger
	// PollInterval and PollAttempts bound the setup export status loop.
	PollInterval time.Duration
	PollAttempts int
}

// FusionClient calls Oracle Fusion REST resources.
type FusionClient struct {
	base         string
	req          *requester
	logger       *slog.Logger
	pollInterval time.Duration
	pollAttempts int
}

// JSONResponse is a decoded REST payload with the URL that produced it.
type JSONResponse struct {
	URL  string
	Body map[string]any
}

// Items returns the "items" collection of a Fusion list response.
func (r *JSONResponse) Items() []map[string]any {
	raw, _ := r.Body["items"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// SetupExport is a downloaded setup task CSV export archive.
type SetupExport struct {
	TaskCode  string
	ProcessID string
	Data      []byte
}

// NewFusionClient validates cfg and returns a FusionClient.
func NewFusionClient(cfg FusionConfig) (*FusionClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("oracle rest: base url is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("oracle rest: token provider is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = HTTPClient(180 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultExportPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultExportPollAttempts
	}
	return &FusionClient{
		base: base,
		req: &requester{
			client: cfg.HTTPClient,
			tokens: cfg.Tokens,
			retry:  cfg.Retry,
			logger: cfg.Logger,
		},
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}, nil
}

// BaseURL returns the environment base URL.
func (c *FusionClient) BaseURL() string {
	return c.base
}

// SalesOrdersURL returns the order hub search URL for field=value.
func (c *FusionClient) SalesOrdersURL(field, value string) string {
	query := url.Values{}
	query.Set("q", field+"="+value)
	query.Set("expand", "lines")
	return c.base + scmAPIPath + "/salesOrdersForOrderHub?" + query.Encode()
}

// GetJSON fetches path relative to the base URL and decodes the JSON body.
func (c *FusionClient) GetJSON(ctx context.Context, operation, path string, query url.Values) (*JSONResponse, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.getJSONURL(ctx, operation, target)
}

func (c *FusionClient) getJSONURL(ctx context.Context, operation, target string) (*JSONResponse, error) {
	res, err := c.req.do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	body, err := decodeObject(operation, res.body)
	if err != nil {
		return nil, err
	}
	return &JSONResponse{URL: target, Body: body}, nil
}

// SearchSalesOrders queries the order hub for orders where field equals value.
func (c *FusionClient) SearchSalesOrders(ctx context.Context, field, value string) (*JSONResponse, error) {
	return c.getJSONURL(ctx, "salesOrdersForOrderHub", c.SalesOrdersURL(field, value))
}

// ListLocations pages through every HCM location.
func (c *FusionClient) ListLocations(ctx context.Context) ([]map[string]any, error) {
	var all []map[string]any
	for offset, page := 0, 1; ; offset, page = offset+LocationsPageSize, page+1 {
		query := url.Values{}
		query.Set("onlyData", "true")
		query.Set("expand", "all")
		query.Set("limit", fmt.Sprint(LocationsPageSize))
		query.Set("offset", fmt.Sprint(offset))

		res, err := c.GetJSON(ctx, "locationsV2", hcmLocationsPath, query)
		if err != nil {
			return nil, err
		}
		items := res.Items()
		all = append(all, items...)
		c.logger.Debug("fetched locations page", "page", page, "count", len(items))
		if len(items) < LocationsPageSize {
			return all, nil
		}
	}
}

// ExportSetupTask starts a setup task CSV export, waits for it to complete
// and downloads the resulting archive.
func (c *FusionClient) ExportSetupTask(ctx context.Context, taskCode string) (*SetupExport, error) {
	taskCode = strings.TrimSpace(taskCode)
	if taskCode == "" {
		return nil, tool.InvalidArguments("task_code is required")
	}

	processID, err := c.startExport(ctx, taskCode)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With("task_code", taskCode, "process_id", processID)
	logger.Info("setup export started")

	if err := c.waitExport(ctx, taskCode, processID, logger); err != nil {
		return nil, err
	}

	target := fmt.Sprintf("%s%s/setupTaskCSVExports/%s/child/SetupTaskCSVExportProcess/%s/child/SetupTaskCSVExportProcessResult/%s/enclosure/FileContent",
		c.base, scmAPIPath, url.PathEscape(taskCode), url.PathEscape(processID), url.PathEscape(processID))
	res, err := c.req.do(ctx, "setupTaskCSVExportDownload", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("setup export downloaded", "bytes", len(res.body))
	return &SetupExport{TaskCode: taskCode, ProcessID: processID, Data: res.body}, nil
}

func (c *FusionClient) startExport(ctx context.Context, taskCode string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"TaskCode":                  taskCode,
		"SetupTaskCSVExportProcess": []map[string]string{{"TaskCode": taskCode}},
	})
	if err != nil {
		return "", err
	}
	target := c.base + scmAPIPath + "/setupTaskCSVExports"
	res, err := c.req.do(ctx, "setupTaskCSVExportStart", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	body, err := decodeObject("setupTaskCSVExportStart", res.body)
	if err != nil {
		return "", err
	}
	processes, _ := body["SetupTaskCSVExportProcess"].([]any)
	if len(processes) > 0 {
		if first, ok := processes[0].(map[string]any); ok {
			if id := scalarString(first["ProcessId"]); id != "" {
				return id, nil
			}
		}
	}
	return "", tool.WithDetails(
		tool.NewToolError(tool.ToolErrorCodeDecodeFailure, "setup export response has no ProcessId", false, nil),
		map[string]any{"response": body},
	)
}

func (c *FusionClient) waitExport(ctx context.Context, taskCode, processID string, logger *slog.Logger) error {
	path := fmt.Sprintf("%s/setupTaskCSVExports/%s/child/SetupTaskCSVExportProcess/%s",
		scmAPIPath, url.PathEscape(taskCode), url.PathEscape(processID))
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		res, err := c.GetJSON(ctx, "setupTaskCSVExportStatus", path, nil)
		if err != nil {
			return err
		}
		completed, _ := res.Body["ProcessCompletedFlag"].(bool)
		logger.Debug("setup export status", "attempt", attempt, "completed", completed)
		if completed {
			return nil
		}
		if attempt == c.pollAttempts {
			break
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return tool.NewToolError(tool.ToolErrorCodeTimeout, fmt.Sprintf("setup export %s did not complete after %d status checks", processID, c.pollAttempts), false, nil)
}

func decodeObject(operation string, body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, fmt.Sprintf("%s: decode response: %v", operation, err), false, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
