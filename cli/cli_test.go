package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/mcp-oracle-scm/tool/mcp"
)

// executeCommand runs a fresh command tree with the given args and stdin,
// capturing stdout/stderr.
func executeCommand(stdin string, args ...string) (stdout, stderr string, err error) {
	root := NewRootCmd("test")
	var outBuf, errBuf bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

const testConfigYAML = `environment: dev1
environments:
  DEV1:
    base_url: https://fusion.invalid
    auth_url: https://idcs.invalid/oauth2/v1/authorize
    token_url: https://idcs.invalid/oauth2/v1/token
    client_id: test-client
auth:
  interactive: false
reports:
  downloads_dir: ${SCM_TEST_DIR}/downloads
output_dir: ${SCM_TEST_DIR}/output
`

// isolate points HOME, the state store and the Oracle env overrides at a
// temp dir and returns a config path. Empty yaml means no config file.
func isolate(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("SCM_TEST_DIR", dir)
	t.Setenv("MCP_ORACLE_SCM_STORE", filepath.Join(dir, "state.db"))
	t.Setenv("MCP_DEBUG_ENABLED", "No")
	for _, key := range []string{"ORACLE_ENV", "ORACLE_BASE_URL", "ORACLE_IDENTITY_DOMAIN", "ORACLE_AUTH_URL", "ORACLE_TOKEN_URL", "ORACLE_CLIENT_ID", "ORACLE_SCOPE", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	if yaml == "" {
		return ""
	}
	path := filepath.Join(dir, "mcp-oracle-scm.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v (%T), want *ExitError", err, err)
	}
	return exitErr.Code
}

func decodeReplies(t *testing.T, out string) []mcp.Message {
	t.Helper()
	var replies []mcp.Message
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg mcp.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("stdout line %q is not a JSON-RPC message: %v", scanner.Text(), err)
		}
		replies = append(replies, msg)
	}
	return replies
}

const protocolSession = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"test"}}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope","arguments":{}}}
`

func TestServeAnswersOverStdio(t *testing.T) {
	configPath := isolate(t, testConfigYAML)

	tests := []struct {
		name string
		args []string
	}{
		{name: "serve subcommand", args: []string{"serve", "--config", configPath}},
		{name: "root command", args: []string{"--config", configPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(protocolSession, tt.args...)
			if err != nil {
				t.Fatalf("serve error = %v", err)
			}

			replies := decodeReplies(t, stdout)
			if len(replies) != 3 {
				t.Fatalf("replies = %d, want 3 (stdout must carry protocol messages only)", len(replies))
			}

			var initResult mcp.InitializeResult
			if err := json.Unmarshal(replies[0].Result, &initResult); err != nil {
				t.Fatalf("decode initialize: %v", err)
			}
			if initResult.ServerInfo.Name != serverName || initResult.ServerInfo.Version != "test" {
				t.Fatalf("serverInfo = %+v", initResult.ServerInfo)
			}
			if initResult.Instructions == "" {
				t.Fatal("initialize instructions are empty")
			}

			var list mcp.ToolsListResult
			if err := json.Unmarshal(replies[1].Result, &list); err != nil {
				t.Fatalf("decode tools/list: %v", err)
			}
			if len(list.Tools) != 16 {
				t.Fatalf("tools = %d, want 16", len(list.Tools))
			}

			if replies[2].Error == nil || replies[2].Error.Code != mcp.CodeInvalidParams {
				t.Fatalf("unknown tool reply = %+v, want invalid params error", replies[2])
			}
		})
	}
}

func TestToolsList(t *testing.T) {
	configPath := isolate(t, testConfigYAML)

	stdout, _, err := executeCommand("", "tools", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	for _, want := range []string{"NAME", "get_order_count", "check_single_order_details", "export_setup_task", "p_date_end,p_date_start,p_wh_code"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("tools list output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = executeCommand("", "tools", "list", "--json", "--config", configPath)
	if err != nil {
		t.Fatalf("tools list --json error = %v", err)
	}
	var tools []map[string]any
	if err := json.Unmarshal([]byte(stdout), &tools); err != nil {
		t.Fatalf("decode tools list json: %v", err)
	}
	if tools[0]["inputSchema"] == nil {
		t.Fatalf("first tool has no inputSchema: %v", tools[0])
	}
}

func TestToolsListWithoutEnvironment(t *testing.T) {
	isolate(t, "")

	stdout, _, err := executeCommand("", "tools", "list")
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	if !strings.Contains(stdout, "get_po_summary") {
		t.Fatalf("tools list output missing get_po_summary:\n%s", stdout)
	}
}

func TestToolsCall(t *testing.T) {
	tests := []struct {
		name      string
		yaml      bool
		args      []string
		wantCode  int
		wantInOut string
	}{
		{
			name:      "unknown tool",
			yaml:      true,
			args:      []string{"tools", "call", "anything"},
			wantCode:  exitToolFailed,
			wantInOut: `"error": "unknown tool"`,
		},
		{
			name:      "missing required argument",
			yaml:      true,
			args:      []string{"tools", "call", "check_single_order_details"},
			wantCode:  exitToolFailed,
			wantInOut: `"error_type": "INVALID_ARGUMENTS"`,
		},
		{
			name:      "oracle not configured",
			yaml:      false,
			args:      []string{"tools", "call", "fetch_fusion_locations"},
			wantCode:  exitToolFailed,
			wantInOut: "oracle environment is not configured",
		},
		{
			name:     "args not json",
			yaml:     true,
			args:     []string{"tools", "call", "get_order_count", "--args", "not-json"},
			wantCode: exitConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := ""
			if tt.yaml {
				yaml = testConfigYAML
			}
			configPath := isolate(t, yaml)
			args := tt.args
			if configPath != "" {
				args = append(args, "--config", configPath)
			}

			stdout, _, err := executeCommand("", args...)
			if got := exitCode(t, err); got != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (err %v)", got, tt.wantCode, err)
			}
			if tt.wantInOut != "" && !strings.Contains(stdout, tt.wantInOut) {
				t.Fatalf("stdout missing %q:\n%s", tt.wantInOut, stdout)
			}
		})
	}
}

func TestAuthStatusWithoutToken(t *testing.T) {
	configPath := isolate(t, testConfigYAML)

	stdout, _, err := executeCommand("", "auth", "status", "--config", configPath)
	if err != nil {
		t.Fatalf("auth status error = %v", err)
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, stdout)
	}
	if status["environment"] != "DEV1" || status["authenticated"] != false {
		t.Fatalf("status = %v, want DEV1 unauthenticated", status)
	}

	if _, _, err := executeCommand("", "auth", "logout", "--config", configPath); err != nil {
		t.Fatalf("auth logout error = %v", err)
	}
}

func TestAuthRequiresEnvironment(t *testing.T) {
	isolate(t, "")

	_, _, err := executeCommand("", "auth", "status")
	if got := exitCode(t, err); got != exitConfig {
		t.Fatalf("exit code = %d, want %d", got, exitConfig)
	}
}

func TestInvalidEnvironmentFailsConfig(t *testing.T) {
	configPath := isolate(t, testConfigYAML)
	t.Setenv("ORACLE_ENV", "PROD9")

	_, _, err := executeCommand("", "tools", "list", "--config", configPath)
	if got := exitCode(t, err); got != exitConfig {
		t.Fatalf("exit code = %d, want %d", got, exitConfig)
	}
	if !strings.Contains(err.Error(), "Valid values are: DEV1") {
		t.Fatalf("error = %v, want valid environment list", err)
	}
}

func TestRunsListEmpty(t *testing.T) {
	configPath := isolate(t, testConfigYAML)

	stdout, _, err := executeCommand("", "runs", "list", "--json", "--config", configPath)
	if err != nil {
		t.Fatalf("runs list error = %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Fatalf("runs list = %q, want []", stdout)
	}

	stdout, _, err = executeCommand("", "runs", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("runs list error = %v", err)
	}
	if !strings.HasPrefix(stdout, "STARTED") {
		t.Fatalf("runs list = %q, want header", stdout)
	}
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := executeCommand("", "--version")
	if err != nil {
		t.Fatalf("--version error = %v", err)
	}
	if strings.TrimSpace(stdout) != "mcp-oracle-scm version test" {
		t.Fatalf("--version = %q", stdout)
	}
}
