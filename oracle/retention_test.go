package oracle

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRetentionSweeperRemovesOnlyExpiredReports(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	files := map[string]time.Time{
		"Orders_20250101_010101_abcdef01.csv": now.Add(-48 * time.Hour),
		"Orders_20250531_010101_abcdef02.csv": now.Add(-time.Hour),
		"notes.csv":                           now.Add(-48 * time.Hour),
	}
	for name, mtime := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}

	sweeper, err := NewRetentionSweeper(dir, 24*time.Hour, "0 * * * *", nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}
	sweeper.now = func() time.Time { return now }

	removed, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(removed) != 1 || filepath.Base(removed[0]) != "Orders_20250101_010101_abcdef01.csv" {
		t.Fatalf("removed = %v", removed)
	}
	for _, keep := range []string{"Orders_20250531_010101_abcdef02.csv", "notes.csv"} {
		if _, err := os.Stat(filepath.Join(dir, keep)); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}

func TestRetentionSweeperMissingDir(t *testing.T) {
	sweeper, err := NewRetentionSweeper(filepath.Join(t.TempDir(), "absent"), time.Hour, "*/5 * * * *", nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}
	removed, err := sweeper.Sweep()
	if err != nil || removed != nil {
		t.Fatalf("Sweep() = %v, %v", removed, err)
	}
}

func TestNewRetentionSweeperValidation(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		retention time.Duration
		expr      string
	}{
		{name: "no dir", retention: time.Hour, expr: "0 * * * *"},
		{name: "no retention", dir: "x", expr: "0 * * * *"},
		{name: "no expr", dir: "x", retention: time.Hour},
		{name: "bad expr", dir: "x", retention: time.Hour, expr: "every hour"},
		{name: "seconds field", dir: "x", retention: time.Hour, expr: "0 0 * * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRetentionSweeper(tt.dir, tt.retention, tt.expr, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRetentionSweeperNext(t *testing.T) {
	sweeper, err := NewRetentionSweeper("x", time.Hour, "30 2 * * *", nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}
	from := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	want := time.Date(2025, 1, 2, 2, 30, 0, 0, time.UTC)
	if got := sweeper.Next(from); !got.Equal(want) {
		t.Fatalf("Next() = %v, want %v", got, want)
	}
}
