package tool

import "strings"

// Severity defines diagnostic severity produced by validators.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a structured validation finding.
type Diagnostic struct {
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func hasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// diagnosticsError folds error-severity diagnostics into one INVALID_ARGUMENTS error.
func diagnosticsError(diags []Diagnostic) *ToolError {
	messages := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity == SeverityError {
			messages = append(messages, d.Message)
		}
	}
	return WithDetails(
		NewToolError(ToolErrorCodeInvalidArguments, strings.Join(messages, "; "), false, nil),
		map[string]any{"diagnostics": diags},
	)
}
