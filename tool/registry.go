package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	// ErrDuplicateName is returned when a descriptor name is already registered.
	ErrDuplicateName = errors.New("tool: duplicate tool name")
	// ErrRegistrySealed is returned when registering after the registry was sealed.
	ErrRegistrySealed = errors.New("tool: registry is sealed")
	// ErrInvalidDescriptor is returned for descriptors without a name or handler.
	ErrInvalidDescriptor = errors.New("tool: invalid descriptor")
)

// Descriptor is the published metadata of one tool.
type Descriptor struct {
	Name        string
	Description string
	Inputs      map[string]FieldSpec
	// Timeout overrides the server-wide per-call timeout when positive.
	Timeout time.Duration
}

// InputSchema returns the JSON Schema for the descriptor inputs.
func (d Descriptor) InputSchema() map[string]any {
	return InputSchema(d.Inputs)
}

// Handler executes a tool call. The returned value must be JSON-encodable.
type Handler func(ctx context.Context, args Arguments) (any, error)

// Request is one tool invocation.
type Request struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments,omitempty"`
}

// Response is the outcome of one Dispatch. Exactly one of Result and Error is
// meaningful, selected by OK.
type Response struct {
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ToolError `json:"-"`
}

// MarshalJSON flattens Error into error/error_type/details keys.
func (r Response) MarshalJSON() ([]byte, error) {
	type success struct {
		OK     bool `json:"ok"`
		Result any  `json:"result"`
	}
	type failure struct {
		OK        bool           `json:"ok"`
		Error     string         `json:"error"`
		ErrorType string         `json:"error_type"`
		Details   map[string]any `json:"details,omitempty"`
	}
	if r.OK {
		return json.Marshal(success{OK: true, Result: r.Result})
	}
	out := failure{OK: false, Error: ToolErrorCodeInvocationFailed, ErrorType: ToolErrorCodeInvocationFailed}
	if r.Error != nil {
		out.Error = r.Error.Message
		out.ErrorType = r.Error.Code
		out.Details = r.Error.Details
	}
	return json.Marshal(out)
}

type entry struct {
	descriptor Descriptor
	handler    Handler
}

// Registry maps tool names to handlers. It is populated at startup, then
// sealed; after Seal it is read-only and safe for concurrent Dispatch.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	sealed  bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a tool. The first registration of a name wins.
func (r *Registry) Register(descriptor Descriptor, handler Handler) error {
	name := strings.TrimSpace(descriptor.Name)
	if name == "" || handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidDescriptor)
	}
	descriptor.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.entries[name] = entry{descriptor: descriptor, handler: handler}
	return nil
}

// Seal freezes the registry. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.descriptor, ok
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].descriptor)
	}
	return out
}

// Dispatch resolves req.Name and invokes its handler. It never panics and
// never returns a nil-error failure: every failure is a Response with OK false.
func (r *Registry) Dispatch(ctx context.Context, req Request) Response {
	r.mu.RLock()
	e, ok := r.entries[req.Name]
	r.mu.RUnlock()
	if !ok {
		return Response{Error: NewToolError(ToolErrorCodeUnknownTool, "unknown tool", false, nil)}
	}

	args := req.Arguments
	if args == nil {
		args = Arguments{}
	}

	started := time.Now()
	result, err := invokeHandler(ctx, e, args)
	observation := ToolInvokeObservation{
		ToolName:   req.Name,
		DurationMS: time.Since(started).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		toolErr := classifyError(err)
		observation.ErrorCode = toolErr.Code
		emitInvokeObservation(observation)
		return Response{Error: toolErr}
	}
	emitInvokeObservation(observation)
	return Response{OK: true, Result: result}
}

func invokeHandler(ctx context.Context, e entry, args Arguments) (result any, err error) {
	if diags := validateArguments(e.descriptor.Inputs, args); hasErrors(diags) {
		return nil, diagnosticsError(diags)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = NewToolError(ToolErrorCodePanic, fmt.Sprintf("handler panicked: %v", rec), false, nil)
		}
	}()
	return e.handler(ctx, args)
}
