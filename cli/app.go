package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/mcp-oracle-scm/config"
	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/scm"
	"github.com/petal-labs/mcp-oracle-scm/store"
	"github.com/petal-labs/mcp-oracle-scm/tool"
	"github.com/petal-labs/mcp-oracle-scm/tool/mcp"
)

// serverName is reported in the MCP initialize result.
const serverName = "mcp-oracle-scm"

// app is the wired process: configuration, state store, Oracle clients and
// the tool registry.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.SQLite
	auth     *oracle.Authenticator
	service  *scm.Service
	registry *tool.Registry
	version  string

	// envErr is set when the selected Oracle environment is incomplete. The
	// server still starts; every Oracle call fails with this error.
	envErr error

	closers []io.Closer
}

// openApp loads configuration from the persistent flags and wires every
// component. The caller must Close the returned app.
func openApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, exitError(exitConfig, "%s", err)
	}
	cfg, err := config.Load(config.LoadOptions{ConfigPath: configPath})
	if err != nil {
		return nil, exitError(exitConfig, "loading config: %s", err)
	}
	if verbose {
		cfg.Logging.Enabled = true
		cfg.Logging.Level = "DEBUG"
	}

	logger, logCloser, err := config.NewLogger(cfg.Logging, time.Now())
	if err != nil {
		return nil, exitError(exitConfig, "%s", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		version: cmd.Root().Version,
		closers: []io.Closer{logCloser},
	}
	if a.version == "" {
		a.version = "dev"
	}

	st, err := store.Open(store.Config{Path: cfg.Store.Path, SecretKey: cfg.Store.SecretKey})
	if err != nil {
		_ = a.Close()
		return nil, exitError(exitRuntime, "%s", err)
	}
	a.store = st
	a.closers = append(a.closers, st)

	if err := a.wireOracle(); err != nil {
		_ = a.Close()
		return nil, exitError(exitRuntime, "%s", err)
	}
	return a, nil
}

func (a *app) wireOracle() error {
	retry := oracle.RetryPolicy{MaxAttempts: a.cfg.Retry.MaxAttempts, Backoff: a.cfg.Retry.Backoff}
	httpClient := oracle.HTTPClient(a.cfg.Timeouts.Request)

	var (
		reports oracle.ReportRunner
		fusion  scm.Fusion
	)
	env, envErr := a.cfg.ActiveEnvironment()
	if envErr != nil {
		a.envErr = envErr
		a.logger.Error("oracle environment unavailable", "environment", a.cfg.Environment, "error", envErr)
		unavailable := unavailableOracle{err: envErr}
		reports, fusion = unavailable, unavailable
	} else {
		auth, err := oracle.NewAuthenticator(oracle.AuthConfig{
			Environment:  a.cfg.Environment,
			ClientID:     env.ClientID,
			AuthURL:      env.AuthURL,
			TokenURL:     env.TokenURL,
			Scope:        env.Scope,
			RedirectURL:  a.cfg.Auth.RedirectURL,
			LoginTimeout: a.cfg.Auth.LoginTimeout,
			ExpiryBuffer: a.cfg.Auth.ExpiryBuffer,
			Interactive:  a.cfg.Auth.InteractiveEnabled(),
			Store:        a.store,
			HTTPClient:   oracle.HTTPClient(a.cfg.Timeouts.Connect),
			Logger:       a.logger,
		})
		if err != nil {
			return err
		}
		a.auth = auth

		reportClient, err := oracle.NewReportClient(oracle.ReportConfig{
			BaseURL:      env.BaseURL,
			DownloadsDir: a.cfg.Reports.DownloadsDir,
			ChunkSize:    a.cfg.Reports.ChunkSize,
			Tokens:       auth,
			HTTPClient:   httpClient,
			Retry:        retry,
			Recorder:     a.store,
			Logger:       a.logger,
		})
		if err != nil {
			return err
		}
		fusionClient, err := oracle.NewFusionClient(oracle.FusionConfig{
			BaseURL:    env.BaseURL,
			Tokens:     auth,
			HTTPClient: httpClient,
			Retry:      retry,
			Logger:     a.logger,
		})
		if err != nil {
			return err
		}
		reports, fusion = reportClient, fusionClient
	}

	service, err := scm.New(scm.Config{
		Reports:      reports,
		Fusion:       fusion,
		OutputDir:    a.cfg.OutputDir,
		Environment:  a.cfg.Environment,
		Environments: a.cfg.EnvironmentNames(),
		Version:      a.version,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	registry := tool.NewRegistry()
	if err := service.Register(registry); err != nil {
		return err
	}
	a.service = service
	a.registry = registry
	return nil
}

// newServer builds the MCP server over the app registry. toolTimeout
// overrides the configured per-call timeout when positive.
func (a *app) newServer(toolTimeout time.Duration) *mcp.Server {
	timeout := a.cfg.Timeouts.Tool
	if toolTimeout > 0 {
		timeout = toolTimeout
	}
	return mcp.NewServer(a.registry, mcp.Options{
		Name:         serverName,
		Version:      a.version,
		Instructions: scm.Instructions(),
		CallTimeout:  timeout,
		Resources:    a.service.Resources(),
		Logger:       a.logger,
	})
}

// requireAuth returns the authenticator or an exit error explaining why none
// is available.
func (a *app) requireAuth() (*oracle.Authenticator, error) {
	if a.auth == nil {
		return nil, exitError(exitConfig, "oracle environment %q: %v", a.cfg.Environment, a.envErr)
	}
	return a.auth, nil
}

// Close releases the store and log file, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// unavailableOracle stands in for the Oracle clients when the selected
// environment is not configured, so tools/list still works.
type unavailableOracle struct {
	err error
}

func (u unavailableOracle) fail() error {
	return tool.NewToolError(tool.ToolErrorCodeInvocationFailed,
		fmt.Sprintf("oracle environment is not configured: %v", u.err), false, u.err)
}

func (u unavailableOracle) Run(context.Context, string, map[string]string) (*oracle.Report, error) {
	return nil, u.fail()
}

func (unavailableOracle) SalesOrdersURL(string, string) string {
	return ""
}

func (u unavailableOracle) SearchSalesOrders(context.Context, string, string) (*oracle.JSONResponse, error) {
	return nil, u.fail()
}

func (u unavailableOracle) ListLocations(context.Context) ([]map[string]any, error) {
	return nil, u.fail()
}

func (u unavailableOracle) ExportSetupTask(context.Context, string) (*oracle.SetupExport, error) {
	return nil, u.fail()
}
