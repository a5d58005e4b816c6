package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	register := func(desc tool.Descriptor, h tool.Handler) {
		if err := reg.Register(desc, h); err != nil {
			t.Fatalf("Register(%s) error = %v", desc.Name, err)
		}
	}
	register(tool.Descriptor{Name: "ping", Description: "Health check"}, func(context.Context, tool.Arguments) (any, error) {
		return "pong", nil
	})
	register(tool.Descriptor{
		Name:   "echo",
		Inputs: map[string]tool.FieldSpec{"value": {Type: tool.TypeString, Required: true}},
	}, func(_ context.Context, args tool.Arguments) (any, error) {
		return map[string]any{"value": args.String("value")}, nil
	})
	register(tool.Descriptor{Name: "fail"}, func(context.Context, tool.Arguments) (any, error) {
		return nil, errors.New("report failed")
	})
	register(tool.Descriptor{Name: "slow", Timeout: 20 * time.Millisecond}, func(ctx context.Context, _ tool.Arguments) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	return reg
}

func serveLines(t *testing.T, srv *Server, lines ...string) []Message {
	t.Helper()
	var out bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	if err := srv.Serve(context.Background(), transport); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	var replies []Message
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("reply %q is not JSON: %v", scanner.Text(), err)
		}
		replies = append(replies, msg)
	}
	return replies
}

func decodeResult[T any](t *testing.T, msg Message) T {
	t.Helper()
	if msg.Error != nil {
		t.Fatalf("unexpected rpc error: %v", msg.Error)
	}
	var out T
	if err := json.Unmarshal(msg.Result, &out); err != nil {
		t.Fatalf("Unmarshal(result) error = %v", err)
	}
	return out
}

func TestServeInitializeAndList(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{Name: "mcp-oracle-scm", Version: "1.2.3", Instructions: "use tools"})
	replies := serveLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":"two","method":"tools/list"}`,
	)
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want 2 (notification gets none)", len(replies))
	}

	initResult := decodeResult[InitializeResult](t, replies[0])
	if initResult.ProtocolVersion != "2025-03-26" {
		t.Fatalf("protocolVersion = %q", initResult.ProtocolVersion)
	}
	if initResult.ServerInfo.Name != "mcp-oracle-scm" || initResult.ServerInfo.Version != "1.2.3" {
		t.Fatalf("serverInfo = %+v", initResult.ServerInfo)
	}
	if initResult.Instructions != "use tools" {
		t.Fatalf("instructions = %q", initResult.Instructions)
	}
	if _, ok := initResult.Capabilities["resources"]; ok {
		t.Fatal("resources capability advertised without resources")
	}

	if string(replies[1].ID) != `"two"` {
		t.Fatalf("id = %s, want \"two\"", replies[1].ID)
	}
	list := decodeResult[ToolsListResult](t, replies[1])
	if len(list.Tools) != 4 || list.Tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", list.Tools)
	}
	if list.Tools[0].InputSchema["type"] != "object" {
		t.Fatalf("inputSchema = %v", list.Tools[0].InputSchema)
	}
	if srv.State() != StateServing {
		t.Fatalf("State() = %v, want serving", srv.State())
	}
}

func TestServeUnsupportedProtocolVersionFallsBack(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{})
	replies := serveLines(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
	if got := decodeResult[InitializeResult](t, replies[0]).ProtocolVersion; got != LatestProtocolVersion {
		t.Fatalf("protocolVersion = %q", got)
	}
}

func TestServeToolsCall(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{CallTimeout: time.Second})
	replies := serveLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ping"}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"value":"CVU"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fail","arguments":{"p_bu":"US"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"ping"}}`,
	)
	if len(replies) != 5 {
		t.Fatalf("replies = %d, want 5", len(replies))
	}

	ping := decodeResult[ToolsCallResult](t, replies[0])
	if ping.IsError || ping.Content[0].Text != "pong" {
		t.Fatalf("ping = %+v", ping)
	}

	echo := decodeResult[ToolsCallResult](t, replies[1])
	if echo.StructuredContent["value"] != "CVU" {
		t.Fatalf("echo structuredContent = %v", echo.StructuredContent)
	}

	failed := decodeResult[ToolsCallResult](t, replies[2])
	if !failed.IsError {
		t.Fatal("fail isError = false")
	}
	if failed.StructuredContent["error"] != "report failed" || failed.StructuredContent["error_type"] != tool.ToolErrorCodeInvocationFailed {
		t.Fatalf("fail payload = %v", failed.StructuredContent)
	}
	params, _ := failed.StructuredContent["parameters"].(map[string]any)
	if params["p_bu"] != "US" {
		t.Fatalf("fail parameters = %v", params)
	}

	if replies[3].Error == nil || replies[3].Error.Code != CodeInvalidParams || replies[3].Error.Message != "unknown tool: nope" {
		t.Fatalf("unknown tool reply = %+v", replies[3].Error)
	}

	if again := decodeResult[ToolsCallResult](t, replies[4]); again.IsError {
		t.Fatal("ping after failure isError = true")
	}
}

func TestServeToolsCallValidationAndTimeout(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{CallTimeout: time.Minute})
	replies := serveLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"slow"}}`,
	)

	invalid := decodeResult[ToolsCallResult](t, replies[0])
	if !invalid.IsError || invalid.StructuredContent["error_type"] != tool.ToolErrorCodeInvalidArguments {
		t.Fatalf("invalid = %v", invalid.StructuredContent)
	}
	slow := decodeResult[ToolsCallResult](t, replies[1])
	if !slow.IsError || slow.StructuredContent["error_type"] != tool.ToolErrorCodeTimeout {
		t.Fatalf("slow = %v", slow.StructuredContent)
	}
}

func TestServeProtocolErrors(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{})
	replies := serveLines(t, srv,
		`{not json`,
		`{"jsonrpc":"2.0","id":1,"method":"bogus/method"}`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	)
	if len(replies) != 5 {
		t.Fatalf("replies = %d, want 5", len(replies))
	}
	wantCodes := []int{CodeParseError, CodeMethodNotFound, CodeInvalidRequest, CodeInvalidParams}
	for i, code := range wantCodes {
		if replies[i].Error == nil || replies[i].Error.Code != code {
			t.Fatalf("reply[%d].Error = %+v, want code %d", i, replies[i].Error, code)
		}
	}
	if string(replies[0].ID) != "null" {
		t.Fatalf("parse error id = %s, want null", replies[0].ID)
	}
	if replies[4].Error != nil || string(replies[4].Result) != "{}" {
		t.Fatalf("ping = %+v", replies[4])
	}
}

func TestServeRejectsNonObjectMessages(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{})
	replies := serveLines(t, srv,
		`null`,
		`42`,
		`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`,
		`[1,`,
		`{"jsonrpc":"2.0","id":5,"method":"ping"}`,
	)
	if len(replies) != 5 {
		t.Fatalf("replies = %d, want 5", len(replies))
	}
	wantCodes := []int{CodeInvalidRequest, CodeInvalidRequest, CodeInvalidRequest, CodeParseError}
	for i, code := range wantCodes {
		if replies[i].Error == nil || replies[i].Error.Code != code {
			t.Fatalf("reply[%d].Error = %+v, want code %d", i, replies[i].Error, code)
		}
		if string(replies[i].ID) != "null" {
			t.Fatalf("reply[%d].ID = %s, want null", i, replies[i].ID)
		}
	}
	if replies[4].Error != nil || string(replies[4].ID) != "5" {
		t.Fatalf("ping after rejected lines = %+v", replies[4])
	}
}

func TestServeResources(t *testing.T) {
	srv := NewServer(newTestRegistry(t), Options{Resources: []Resource{{
		URI:      "config://app",
		Name:     "App configuration",
		MimeType: "application/json",
		Read: func(context.Context) (any, error) {
			return map[string]any{"name": "Oracle SCM MCP Server"}, nil
		},
	}}})
	replies := serveLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"config://app"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"config://missing"}}`,
	)

	list := decodeResult[ResourcesListResult](t, replies[0])
	if len(list.Resources) != 1 || list.Resources[0].URI != "config://app" {
		t.Fatalf("resources = %+v", list.Resources)
	}
	read := decodeResult[ResourcesReadResult](t, replies[1])
	if !strings.Contains(read.Contents[0].Text, "Oracle SCM MCP Server") {
		t.Fatalf("contents = %+v", read.Contents)
	}
	if replies[2].Error == nil || replies[2].Error.Code != CodeResourceNotFound {
		t.Fatalf("missing resource reply = %+v", replies[2].Error)
	}
}

func TestServeSealsRegistryAndRejectsSecondServe(t *testing.T) {
	reg := newTestRegistry(t)
	srv := NewServer(reg, Options{})
	if srv.State() != StateIdle {
		t.Fatalf("State() = %v, want idle", srv.State())
	}
	serveLines(t, srv)

	if !reg.Sealed() {
		t.Fatal("registry not sealed after Serve")
	}
	err := srv.Serve(context.Background(), NewStdioTransport(strings.NewReader(""), io.Discard))
	if !errors.Is(err, ErrAlreadyServing) {
		t.Fatalf("second Serve() error = %v, want ErrAlreadyServing", err)
	}
}

type failingTransport struct {
	closed bool
}

func (f *failingTransport) Receive(context.Context) (Message, error) {
	return Message{}, errors.New("broken pipe")
}
func (f *failingTransport) Send(context.Context, Message) error { return nil }
func (f *failingTransport) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestServeTransportFailureClosesTransport(t *testing.T) {
	transport := &failingTransport{}
	err := NewServer(tool.NewRegistry(), Options{}).Serve(context.Background(), transport)
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("Serve() error = %v, want broken pipe", err)
	}
	if !transport.closed {
		t.Fatal("transport not closed")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	in, writer := io.Pipe()
	defer writer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(tool.NewRegistry(), Options{}).Serve(ctx, NewStdioTransport(in, io.Discard))
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
