package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
)

const schema = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	environment TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	token_type TEXT NOT NULL,
	expiry TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS report_runs (
	id TEXT PRIMARY KEY,
	report_path TEXT NOT NULL,
	parameters TEXT NOT NULL,
	file_path TEXT NOT NULL,
	bytes INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS report_runs_started_at ON report_runs (started_at DESC);`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultRunLimit caps ListRuns when no limit is given.
const DefaultRunLimit = 20

// Config configures the SQLite state store.
type Config struct {
	Path string
	// SecretKey seeds token encryption; see Store.SecretKey in config.
	SecretKey string
}

// SQLite persists OAuth tokens and report run history.
type SQLite struct {
	db    *sql.DB
	codec *secretCodec
	now   func() time.Time
}

var (
	_ oracle.TokenStore  = (*SQLite)(nil)
	_ oracle.RunRecorder = (*SQLite)(nil)
)

// Open opens (or creates) the state database at cfg.Path.
func Open(cfg Config) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite create schema: %w", err)
	}

	codec, err := newSecretCodec(cfg.SecretKey, path)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: initialize secret codec: %w", err)
	}
	return &SQLite{db: db, codec: codec, now: time.Now}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadToken returns the stored token for environment.
func (s *SQLite) LoadToken(ctx context.Context, environment string) (*oauth2.Token, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT access_token, refresh_token, token_type, expiry
FROM oauth_tokens
WHERE environment = ?`, environment)

	var access, refresh, tokenType, expiry string
	if err := row.Scan(&access, &refresh, &tokenType, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: load token: %w", err)
	}

	var err error
	tok := &oauth2.Token{TokenType: tokenType}
	if tok.AccessToken, err = s.codec.decrypt(access); err != nil {
		return nil, false, fmt.Errorf("store: decrypt access token: %w", err)
	}
	if tok.RefreshToken, err = s.codec.decrypt(refresh); err != nil {
		return nil, false, fmt.Errorf("store: decrypt refresh token: %w", err)
	}
	if expiry != "" {
		if tok.Expiry, err = time.Parse(timeLayout, expiry); err != nil {
			return nil, false, fmt.Errorf("store: parse token expiry: %w", err)
		}
	}
	return tok, true, nil
}

// SaveToken upserts the token for environment. Access and refresh tokens are
// encrypted before they reach disk.
func (s *SQLite) SaveToken(ctx context.Context, environment string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("store: token is nil")
	}
	access, err := s.codec.encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("store: encrypt access token: %w", err)
	}
	refresh, err := s.codec.encrypt(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("store: encrypt refresh token: %w", err)
	}
	expiry := ""
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC().Format(timeLayout)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO oauth_tokens (environment, access_token, refresh_token, token_type, expiry, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(environment) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	token_type = excluded.token_type,
	expiry = excluded.expiry,
	updated_at = excluded.updated_at`,
		environment, access, refresh, tok.TokenType, expiry, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store: save token: %w", err)
	}
	return nil
}

// DeleteToken removes the token for environment. Missing rows are not an error.
func (s *SQLite) DeleteToken(ctx context.Context, environment string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE environment = ?`, environment); err != nil {
		return fmt.Errorf("store: delete token: %w", err)
	}
	return nil
}

// RecordRun inserts a report run.
func (s *SQLite) RecordRun(ctx context.Context, run oracle.RunRecord) error {
	params := run.Parameters
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("store: encode run parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO report_runs (id, report_path, parameters, file_path, bytes, status, error, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReportPath, string(encoded), run.FilePath, run.Bytes, run.Status, run.Error,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("store: record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]oracle.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, report_path, parameters, file_path, bytes, status, error, started_at, duration_ms
FROM report_runs
ORDER BY started_at DESC, id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []oracle.RunRecord
	for rows.Next() {
		var (
			run        oracle.RunRecord
			params     string
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.ReportPath, &params, &run.FilePath, &run.Bytes, &run.Status, &run.Error, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
			return nil, fmt.Errorf("store: decode run parameters: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("store: parse run start: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: run rows: %w", err)
	}
	return runs, nil
}
