package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var retentionCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// reportFilePattern matches names produced by ReportClient.save.
var reportFilePattern = regexp.MustCompile(`_\d{8}_\d{6}_[0-9a-f]{8}\.csv$`)

// RetentionSweeper deletes downloaded report files older than a retention
// window, on a cron schedule.
type RetentionSweeper struct {
	dir       string
	retention time.Duration
	schedule  cron.Schedule
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionSweeper parses a five-field cron expression.
func NewRetentionSweeper(dir string, retention time.Duration, expr string, logger *slog.Logger) (*RetentionSweeper, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("retention: directory is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention: window must be positive")
	}
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("retention: cron expression is required")
	}
	schedule, err := retentionCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("retention: invalid cron expression: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetentionSweeper{
		dir:       dir,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Next returns the next scheduled sweep after t.
func (s *RetentionSweeper) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Sweep removes expired report files and returns their paths. Files that do
// not look like generated report output are never touched.
func (s *RetentionSweeper) Sweep() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retention: read %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-s.retention)
	var removed []string
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !reportFilePattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		target := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, target)
	}
	return removed, errors.Join(errs...)
}

// Run sweeps on schedule until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		removed, err := s.Sweep()
		if err != nil {
			s.logger.Warn("report retention sweep failed", "error", err)
		}
		if len(removed) > 0 {
			s.logger.Info("report retention sweep removed files", "count", len(removed))
		}
	}
}
