package scm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// fakeReports serves canned CSV per report path and records the parameters
// of every run.
type fakeReports struct {
	data  map[string]string
	err   error
	calls []reportCall
}

type reportCall struct {
	path   string
	params map[string]string
}

func (f *fakeReports) Run(_ context.Context, reportPath string, params map[string]string) (*oracle.Report, error) {
	f.calls = append(f.calls, reportCall{path: reportPath, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &oracle.Report{
		Path:     reportPath,
		Name:     oracle.ReportName(reportPath),
		FilePath: "/downloads/" + oracle.ReportName(reportPath) + ".csv",
		Data:     []byte(f.data[reportPath]),
	}, nil
}

func (f *fakeReports) lastParams(t *testing.T) map[string]string {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no report was run")
	}
	return f.calls[len(f.calls)-1].params
}

// fakeFusion answers sales order searches from a field -> value -> items map.
type fakeFusion struct {
	orders    map[string]map[string][]any
	searchErr map[string]error
	searched  []string
	locations []map[string]any
	export    *oracle.SetupExport
	err       error
}

func (f *fakeFusion) SalesOrdersURL(field, value string) string {
	return "https://fusion.invalid/salesOrdersForOrderHub?q=" + field + "=" + value
}

func (f *fakeFusion) SearchSalesOrders(_ context.Context, field, value string) (*oracle.JSONResponse, error) {
	f.searched = append(f.searched, field)
	if err := f.searchErr[field]; err != nil {
		return nil, err
	}
	items := f.orders[field][value]
	if items == nil {
		items = []any{}
	}
	return &oracle.JSONResponse{URL: f.SalesOrdersURL(field, value), Body: map[string]any{"items": items}}, nil
}

func (f *fakeFusion) ListLocations(context.Context) ([]map[string]any, error) {
	return f.locations, f.err
}

func (f *fakeFusion) ExportSetupTask(_ context.Context, taskCode string) (*oracle.SetupExport, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.export == nil {
		return nil, errors.New("no export")
	}
	out := *f.export
	out.TaskCode = taskCode
	return &out, nil
}

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, reports *fakeReports, fusion *fakeFusion) *Service {
	t.Helper()
	if reports == nil {
		reports = &fakeReports{}
	}
	if fusion == nil {
		fusion = &fakeFusion{}
	}
	s, err := New(Config{
		Reports:      reports,
		Fusion:       fusion,
		OutputDir:    t.TempDir(),
		Environment:  "DEV1",
		Environments: []string{"DEV1", "PROD"},
		Version:      "1.2.3",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNewRequiresClients(t *testing.T) {
	if _, err := New(Config{Fusion: &fakeFusion{}}); err == nil {
		t.Fatal("New() without report runner error = nil")
	}
	if _, err := New(Config{Reports: &fakeReports{}}); err == nil {
		t.Fatal("New() without fusion client error = nil")
	}
}

func TestRegisterAddsEveryTool(t *testing.T) {
	s := newTestService(t, nil, nil)
	reg := tool.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	descriptors := reg.Descriptors()
	if len(descriptors) != 16 {
		t.Fatalf("registered %d tools, want 16", len(descriptors))
	}
	for _, name := range []string{
		"get_order_count", "get_open_orders", "extract_order_line_details", "get_order_line_summary",
		"get_back_orders", "check_single_order_details", "lookup_inventory_summary",
		"lookup_inventory_transactions", "lookup_inventory_transaction_details", "get_po_summary",
		"get_po_details", "get_pr_po_apprvl_dtls", "get_supplier_configs", "lookup_item_details",
		"fetch_fusion_locations", "export_setup_task",
	} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("tool %q is not registered", name)
		}
	}

	export, _ := reg.Lookup("export_setup_task")
	if export.Timeout != SetupExportTimeout {
		t.Fatalf("export_setup_task timeout = %v, want %v", export.Timeout, SetupExportTimeout)
	}

	if err := s.Register(reg); !errors.Is(err, tool.ErrDuplicateName) {
		t.Fatalf("second Register() error = %v, want ErrDuplicateName", err)
	}
}

func TestDispatchValidatesBeforeCallingOracle(t *testing.T) {
	reports := &fakeReports{}
	s := newTestService(t, reports, nil)
	reg := tool.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	resp := reg.Dispatch(context.Background(), tool.Request{
		Name:      "lookup_inventory_summary",
		Arguments: tool.Arguments{"p_wh_code": "CVU"},
	})
	if resp.OK || resp.Error.Code != tool.ToolErrorCodeInvalidArguments {
		t.Fatalf("response = %+v, want INVALID_ARGUMENTS", resp)
	}
	if len(reports.calls) != 0 {
		t.Fatalf("report runs = %d, want 0", len(reports.calls))
	}
}

func TestReportFailureCarriesParameters(t *testing.T) {
	upstream := tool.NewToolError(tool.ToolErrorCodeUpstreamFailure, "report service returned 500", true, nil)
	s := newTestService(t, &fakeReports{err: upstream}, nil)

	_, err := s.OpenOrders(context.Background(), tool.Arguments{"p_sku": "A-1"})
	toolErr, ok := tool.ToolErrorFrom(err)
	if !ok {
		t.Fatalf("error = %v, want ToolError", err)
	}
	if toolErr.Code != tool.ToolErrorCodeUpstreamFailure {
		t.Fatalf("code = %s, want UPSTREAM_FAILURE", toolErr.Code)
	}
	used, _ := toolErr.Details["parameters_used"].(map[string]any)
	if used["p_sku"] != "A-1" {
		t.Fatalf("parameters_used = %v, want p_sku", toolErr.Details)
	}

	plain := newTestService(t, &fakeReports{err: errors.New("boom")}, nil)
	_, err = plain.OpenOrders(context.Background(), tool.Arguments{})
	if code := tool.ToolErrorCode(err); code != tool.ToolErrorCodeInvocationFailed {
		t.Fatalf("code = %q, want INVOCATION_FAILED", code)
	}
}

func TestAppConfig(t *testing.T) {
	s := newTestService(t, nil, nil)
	cfg := s.AppConfig()

	if cfg.Version != "1.2.3" || cfg.Environment.Current != "DEV1" {
		t.Fatalf("app config = %+v", cfg)
	}
	if len(cfg.Environment.Available) != 2 {
		t.Fatalf("available environments = %v", cfg.Environment.Available)
	}
	if cfg.Modules["supply_chain_planning"].Status != ModulePlanned {
		t.Fatalf("supply_chain_planning = %+v, want planned", cfg.Modules["supply_chain_planning"])
	}

	total := 0
	for name, module := range cfg.Modules {
		if name != "supply_chain_planning" && module.Status != ModuleActive {
			t.Errorf("module %s status = %s, want active", name, module.Status)
		}
		total += len(module.Tools)
	}
	if total != 16 {
		t.Fatalf("tools across modules = %d, want 16", total)
	}
	if _, ok := cfg.Modules["order_management"].Tools["get_back_orders"]; !ok {
		t.Fatal("order_management is missing get_back_orders")
	}

	resources := s.Resources()
	if len(resources) != 1 || resources[0].URI != AppConfigURI {
		t.Fatalf("resources = %+v", resources)
	}
	payload, err := resources[0].Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, ok := payload.(AppConfig); !ok {
		t.Fatalf("resource payload = %T, want AppConfig", payload)
	}
}

func TestInstructionsMentionTools(t *testing.T) {
	text := Instructions()
	for _, name := range []string{"get_back_orders", "check_single_order_details"} {
		if !strings.Contains(text, name) {
			t.Errorf("instructions do not mention %s", name)
		}
	}
}
