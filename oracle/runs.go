package oracle

import (
	"context"
	"time"
)

// Run statuses.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRecord captures one BI Publisher report execution.
type RunRecord struct {
	ID         string            `json:"id"`
	ReportPath string            `json:"report_path"`
	Parameters map[string]string `json:"parameters,omitempty"`
	FilePath   string            `json:"file_path,omitempty"`
	Bytes      int64             `json:"bytes"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
}

// RunRecorder persists report run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}
