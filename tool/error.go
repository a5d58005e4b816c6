package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// ToolErrorCodeUnknownTool is returned when a request names a tool that is not registered.
	ToolErrorCodeUnknownTool = "UNKNOWN_TOOL"
	// ToolErrorCodeInvalidArguments is returned when request arguments do not satisfy the input schema.
	ToolErrorCodeInvalidArguments = "INVALID_ARGUMENTS"
	// ToolErrorCodeInvocationFailed is a generic fallback for handler failures.
	ToolErrorCodeInvocationFailed = "INVOCATION_FAILED"
	// ToolErrorCodeTimeout is returned when a handler exceeds its deadline.
	ToolErrorCodeTimeout = "TIMEOUT"
	// ToolErrorCodeCancelled is returned when the serving context is cancelled mid-call.
	ToolErrorCodeCancelled = "CANCELLED"
	// ToolErrorCodeUpstreamFailure is returned for non-success Oracle responses.
	ToolErrorCodeUpstreamFailure = "UPSTREAM_FAILURE"
	// ToolErrorCodeDecodeFailure is returned when an Oracle payload cannot be decoded.
	ToolErrorCodeDecodeFailure = "DECODE_FAILURE"
	// ToolErrorCodeTransportFailure is returned when HTTP I/O to Oracle fails.
	ToolErrorCodeTransportFailure = "TRANSPORT_FAILURE"
	// ToolErrorCodeAuthRequired is returned when no usable Oracle token exists and
	// interactive login is disabled or failed.
	ToolErrorCodeAuthRequired = "AUTH_REQUIRED"
	// ToolErrorCodeRangeTooLarge is returned when a date range exceeds what a report allows.
	ToolErrorCodeRangeTooLarge = "RANGE_TOO_LARGE"
	// ToolErrorCodePanic is returned when a handler panics.
	ToolErrorCodePanic = "PANIC"
)

// ToolError is a structured invocation error that keeps a machine-readable code
// and retryability while crossing the Oracle client, handler and protocol layers.
type ToolError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return ToolErrorCodeInvocationFailed
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewToolError builds a ToolError, defaulting the code and taking the message
// from cause when message is blank.
func NewToolError(code, message string, retryable bool, cause error) *ToolError {
	cleanCode := strings.TrimSpace(code)
	if cleanCode == "" {
		cleanCode = ToolErrorCodeInvocationFailed
	}
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &ToolError{
		Code:      cleanCode,
		Message:   cleanMsg,
		Retryable: retryable,
		Cause:     cause,
	}
}

// InvalidArguments is shorthand for a non-retryable INVALID_ARGUMENTS error.
func InvalidArguments(format string, args ...any) *ToolError {
	return NewToolError(ToolErrorCodeInvalidArguments, fmt.Sprintf(format, args...), false, nil)
}

// WithDetails merges details into err and returns it.
func WithDetails(err *ToolError, details map[string]any) *ToolError {
	if err == nil {
		return nil
	}
	if len(details) == 0 {
		return err
	}
	if err.Details == nil {
		err.Details = make(map[string]any, len(details))
	}
	for key, value := range details {
		err.Details[key] = value
	}
	return err
}

// ToolErrorFrom extracts the first ToolError in err's chain.
func ToolErrorFrom(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// ToolErrorCode returns the code of the ToolError in err's chain, or "".
func ToolErrorCode(err error) string {
	if toolErr, ok := ToolErrorFrom(err); ok && toolErr != nil {
		return toolErr.Code
	}
	return ""
}

// classifyError turns any handler error into a ToolError. Context errors map
// to TIMEOUT/CANCELLED; everything else that is not already structured becomes
// INVOCATION_FAILED.
func classifyError(err error) *ToolError {
	if toolErr, ok := ToolErrorFrom(err); ok && toolErr != nil {
		return toolErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewToolError(ToolErrorCodeTimeout, "tool invocation timed out", true, err)
	case errors.Is(err, context.Canceled):
		return NewToolError(ToolErrorCodeCancelled, "tool invocation cancelled", false, err)
	default:
		return NewToolError(ToolErrorCodeInvocationFailed, "", false, err)
	}
}
