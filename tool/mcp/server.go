package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// State is the lifecycle state of a Server.
type State int32

const (
	// StateIdle is the state of a constructed server that has not started serving.
	StateIdle State = iota
	// StateServing is entered by Serve and never left.
	StateServing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServing:
		return "serving"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrAlreadyServing is returned when Serve is called more than once.
var ErrAlreadyServing = errors.New("mcp: server already started")

// Resource is a read-only MCP resource served from memory.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	// Read returns the resource payload. Strings are served verbatim, other
	// values are JSON-encoded.
	Read func(ctx context.Context) (any, error)
}

// Options configures a Server.
type Options struct {
	Name         string
	Version      string
	Instructions string
	// CallTimeout bounds each tools/call unless the descriptor sets its own.
	CallTimeout time.Duration
	Resources   []Resource
	Logger      *slog.Logger
}

// Server answers MCP requests from one peer, one request at a time.
type Server struct {
	registry *tool.Registry
	opts     Options
	logger   *slog.Logger
	state    atomic.Int32
}

// NewServer returns an idle server dispatching tool calls to registry.
func NewServer(registry *tool.Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}
	return &Server{registry: registry, opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Serve seals the registry and handles messages from transport until the peer
// closes the stream or ctx is cancelled. The transport is closed on return.
// Only a failing transport produces a non-nil error.
func (s *Server) Serve(ctx context.Context, transport Transport) (err error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateServing)) {
		return ErrAlreadyServing
	}
	s.registry.Seal()
	defer func() {
		if closeErr := transport.Close(context.Background()); closeErr != nil && err == nil {
			err = fmt.Errorf("mcp: close transport: %w", closeErr)
		}
	}()

	s.logger.Info("mcp server serving", "tools", len(s.registry.Descriptors()))
	for {
		message, recvErr := transport.Receive(ctx)
		if recvErr != nil {
			var decodeErr *DecodeError
			switch {
			case errors.As(recvErr, &decodeErr):
				s.logger.Warn("mcp malformed message", "error", decodeErr.Err)
				reply := errorMessage(json.RawMessage("null"), CodeParseError, "parse error")
				if errors.Is(decodeErr, ErrNotObject) {
					reply = errorMessage(json.RawMessage("null"), CodeInvalidRequest, "invalid request")
				}
				if sendErr := transport.Send(ctx, reply); sendErr != nil {
					return sendErr
				}
				continue
			case errors.Is(recvErr, io.EOF):
				s.logger.Info("mcp peer closed stream")
				return nil
			case ctx.Err() != nil:
				s.logger.Info("mcp server stopping", "reason", ctx.Err())
				return nil
			default:
				s.logger.Error("mcp transport failure", "error", recvErr)
				return recvErr
			}
		}

		reply, ok := s.Handle(ctx, message)
		if !ok {
			continue
		}
		if sendErr := transport.Send(ctx, reply); sendErr != nil {
			s.logger.Error("mcp transport failure", "error", sendErr)
			return sendErr
		}
	}
}

// Handle answers one inbound message. ok is false when no reply is due
// (notifications and stray responses).
func (s *Server) Handle(ctx context.Context, message Message) (reply Message, ok bool) {
	if message.Method == "" {
		if message.IsNotification() || message.Result != nil || message.Error != nil {
			return Message{}, false
		}
		return errorMessage(message.ID, CodeInvalidRequest, "invalid request"), true
	}
	if message.IsNotification() {
		s.logger.Debug("mcp notification", "method", message.Method)
		return Message{}, false
	}
	if message.JSONRPC != jsonRPCVersion {
		return errorMessage(message.ID, CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\""), true
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("mcp request panicked", "method", message.Method, "panic", rec)
			reply, ok = errorMessage(message.ID, CodeInternalError, fmt.Sprintf("internal error: %v", rec)), true
		}
	}()

	s.logger.Debug("mcp request", "method", message.Method)
	result, rpcErr := s.route(ctx, message)
	if rpcErr != nil {
		return Message{JSONRPC: jsonRPCVersion, ID: message.ID, Error: rpcErr}, true
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorMessage(message.ID, CodeInternalError, fmt.Sprintf("encode result: %v", err)), true
	}
	return Message{JSONRPC: jsonRPCVersion, ID: message.ID, Result: data}, true
}

func (s *Server) route(ctx context.Context, message Message) (any, *RPCError) {
	switch message.Method {
	case "initialize":
		return s.initialize(message.Params), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return s.toolsList(), nil
	case "tools/call":
		return s.toolsCall(ctx, message.Params)
	case "resources/list":
		return s.resourcesList(), nil
	case "resources/read":
		return s.resourcesRead(ctx, message.Params)
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", message.Method)}
	}
}

func (s *Server) initialize(raw json.RawMessage) InitializeResult {
	var params InitializeParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &params)
	}
	version := LatestProtocolVersion
	if slices.Contains(supportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	s.logger.Info("mcp initialize",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", version,
	)

	capabilities := map[string]any{"tools": map[string]any{}}
	if len(s.opts.Resources) > 0 {
		capabilities["resources"] = map[string]any{}
	}
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities:    capabilities,
		ServerInfo:      ServerInfo{Name: s.opts.Name, Version: s.opts.Version},
		Instructions:    s.opts.Instructions,
	}
}

func (s *Server) toolsList() ToolsListResult {
	descriptors := s.registry.Descriptors()
	tools := make([]Tool, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	return ToolsListResult{Tools: tools}
}

func (s *Server) toolsCall(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var params ToolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: tools/call requires a tool name"}
	}
	resp := s.CallTool(ctx, params.Name, params.Arguments)
	if !resp.OK && resp.Error != nil && resp.Error.Code == tool.ToolErrorCodeUnknownTool {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", params.Name)}
	}
	return callResult(resp, params.Arguments), nil
}

// CallTool dispatches one call under the applicable timeout. It is the path
// used by tools/call and by in-process callers such as the CLI.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) tool.Response {
	timeout := s.opts.CallTimeout
	if desc, ok := s.registry.Lookup(name); ok && desc.Timeout > 0 {
		timeout = desc.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	resp := s.registry.Dispatch(ctx, tool.Request{Name: name, Arguments: args})
	if resp.OK {
		s.logger.Info("tool call succeeded", "tool", name, "duration", time.Since(started))
	} else {
		s.logger.Error("tool call failed",
			"tool", name,
			"error_type", resp.Error.Code,
			"error", resp.Error.Message,
			"duration", time.Since(started),
		)
	}
	return resp
}

func callResult(resp tool.Response, args map[string]any) ToolsCallResult {
	if !resp.OK {
		payload := map[string]any{
			"error":      resp.Error.Message,
			"error_type": resp.Error.Code,
			"parameters": args,
		}
		if len(resp.Error.Details) > 0 {
			payload["details"] = resp.Error.Details
		}
		text, _ := json.MarshalIndent(payload, "", "  ")
		return ToolsCallResult{
			Content:           []ContentBlock{{Type: "text", Text: string(text)}},
			StructuredContent: payload,
			IsError:           true,
		}
	}

	if text, ok := resp.Result.(string); ok {
		return ToolsCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
	}
	data, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		return ToolsCallResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("encode result: %v", err)}},
			IsError: true,
		}
	}
	out := ToolsCallResult{Content: []ContentBlock{{Type: "text", Text: string(data)}}}
	var structured map[string]any
	if json.Unmarshal(data, &structured) == nil {
		out.StructuredContent = structured
	}
	return out
}

func (s *Server) resourcesList() ResourcesListResult {
	out := make([]ResourceInfo, 0, len(s.opts.Resources))
	for _, r := range s.opts.Resources {
		out = append(out, ResourceInfo{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return ResourcesListResult{Resources: out}
}

func (s *Server) resourcesRead(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var params ResourcesReadParams
	if err := json.Unmarshal(raw, &params); err != nil || params.URI == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: resources/read requires a uri"}
	}
	for _, r := range s.opts.Resources {
		if r.URI != params.URI {
			continue
		}
		payload, err := r.Read(ctx)
		if err != nil {
			return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("read resource: %v", err)}
		}
		text, ok := payload.(string)
		if !ok {
			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("encode resource: %v", err)}
			}
			text = string(data)
		}
		return ResourcesReadResult{Contents: []ResourceContents{{URI: r.URI, MimeType: r.MimeType, Text: text}}}, nil
	}
	return nil, &RPCError{Code: CodeResourceNotFound, Message: fmt.Sprintf("resource not found: %s", params.URI)}
}

func errorMessage(id json.RawMessage, code int, message string) Message {
	return Message{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
}
