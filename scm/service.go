package scm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// Report paths, relative to the BI Publisher catalog root.
const (
	reportRoot = "Custom/Square SCM Reports/Block MCP/"

	orderCountReport       = reportRoot + "OrderManagement/OrderCount_Rep.xdo"
	openOrdersReport       = reportRoot + "OrderManagement/BLK_OPEN_ORDERS.xdo"
	orderLineReport        = reportRoot + "OrderManagement/OrderLineReport.xdo"
	orderLineSummaryReport = reportRoot + "OrderManagement/OrderLineSummaryReport.xdo"
	backOrderReport        = reportRoot + "OrderManagement/SquareBackOrder_Rep.xdo"

	inventorySummaryReport = "/" + reportRoot + "Inventory Management/Block Inventory Transactions Summary Report.xdo"
	inventoryDetailsReport = "/" + reportRoot + "Inventory Management/Block Inventory Transaction Details Report.xdo"

	poSummaryReport       = "/" + reportRoot + "Procurement/Block Procurement MCP Summary Report.xdo"
	poDetailsReport       = "/" + reportRoot + "Procurement/Block Procurement MCP Detail Report.xdo"
	approvalQueueReport   = "/" + reportRoot + "Procurement/Block Procurement PO-PR in approvers queue.xdo"
	supplierConfigsReport = "/" + reportRoot + "Procurement/Supplier Contacts and B2B Config Report.xdo"

	itemDetailsReport = "/" + reportRoot + "ProductManagement/PIM Item details Report.xdo"
)

// defaultOffsetDays is the look-back window reports apply when offset_days
// is not given.
const defaultOffsetDays = 7

// Fusion is the subset of the Fusion REST client the tools use.
type Fusion interface {
	SalesOrdersURL(field, value string) string
	SearchSalesOrders(ctx context.Context, field, value string) (*oracle.JSONResponse, error)
	ListLocations(ctx context.Context) ([]map[string]any, error)
	ExportSetupTask(ctx context.Context, taskCode string) (*oracle.SetupExport, error)
}

// Config wires the Oracle clients into the tool handlers.
type Config struct {
	Reports oracle.ReportRunner
	Fusion  Fusion
	// OutputDir receives location and setup exports.
	OutputDir string
	// Environment is the selected Oracle environment; Environments lists all
	// configured ones. Both are reported by config://app.
	Environment  string
	Environments []string
	Version      string
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service implements the Oracle SCM tools.
type Service struct {
	reports      oracle.ReportRunner
	fusion       Fusion
	outputDir    string
	environment  string
	environments []string
	version      string
	logger       *slog.Logger
	now          func() time.Time
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Reports == nil {
		return nil, errors.New("scm: report runner is required")
	}
	if cfg.Fusion == nil {
		return nil, errors.New("scm: fusion client is required")
	}
	s := &Service{
		reports:      cfg.Reports,
		fusion:       cfg.Fusion,
		outputDir:    strings.TrimSpace(cfg.OutputDir),
		environment:  cfg.Environment,
		environments: cfg.Environments,
		version:      cfg.Version,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if s.outputDir == "" {
		s.outputDir = "output"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s, nil
}

// runReport runs reportPath and tags failures with the parameters sent.
func (s *Service) runReport(ctx context.Context, reportPath string, params map[string]string) (*oracle.Report, error) {
	s.logger.Info("running report", "report", oracle.ReportName(reportPath), "parameters", params)
	report, err := s.reports.Run(ctx, reportPath, params)
	if err != nil {
		return nil, withParameters(err, params)
	}
	return report, nil
}

func (s *Service) reportRows(ctx context.Context, reportPath string, params map[string]string, delim rune) (*oracle.Report, []oracle.Row, error) {
	report, err := s.runReport(ctx, reportPath, params)
	if err != nil {
		return nil, nil, err
	}
	rows, err := report.RowsDelimited(delim)
	if err != nil {
		return nil, nil, withParameters(err, params)
	}
	return report, rows, nil
}

func withParameters(err error, params map[string]string) error {
	toolErr, ok := tool.ToolErrorFrom(err)
	if !ok {
		toolErr = tool.NewToolError(tool.ToolErrorCodeInvocationFailed, "", false, err)
	}
	used := make(map[string]any, len(params))
	for k, v := range params {
		used[k] = v
	}
	return tool.WithDetails(toolErr, map[string]any{"parameters_used": used})
}

func (s *Service) elapsedSeconds(started time.Time) float64 {
	return s.now().Sub(started).Seconds()
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.1f seconds", seconds)
}

// setParam copies a trimmed, non-empty argument into params.
func setParam(params map[string]string, key string, args tool.Arguments, name string) string {
	v := args.String(name)
	if v != "" {
		params[key] = v
	}
	return v
}

// offsetParam reads offset_days, rejecting negative values.
func offsetParam(params map[string]string, args tool.Arguments) (int, bool, error) {
	days, ok, err := args.Int("offset_days")
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return defaultOffsetDays, false, nil
	}
	if days < 0 {
		return 0, false, tool.InvalidArguments("offset_days must not be negative")
	}
	params["offset_days"] = fmt.Sprint(days)
	return days, true, nil
}

// translate runs input through lookup, logging when the result is unknown.
func (s *Service) translate(lookup *Lookup, input string) string {
	if input == "" {
		return ""
	}
	out, known := lookup.Translate(input)
	if !known {
		s.logger.Warn("value not found in lookup, passing through", "lookup", lookup.Name(), "input", input)
	} else if out != input {
		s.logger.Debug("translated lookup value", "lookup", lookup.Name(), "input", input, "value", out)
	}
	return out
}

// optional returns nil for empty strings so JSON shows null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
