package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	scmotel "github.com/petal-labs/mcp-oracle-scm/otel"
	"github.com/petal-labs/mcp-oracle-scm/tool"
	"github.com/petal-labs/mcp-oracle-scm/tool/mcp"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP requests over stdin/stdout",
		Long: "Serve MCP requests over stdin/stdout until the client closes the stream.\n" +
			"Nothing but protocol messages is written to stdout.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("tool-timeout", 0, "Per-call tool timeout (default: timeouts.tool from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	toolTimeout, _ := cmd.Flags().GetDuration("tool-timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	providers, err := scmotel.Setup(ctx, scmotel.SetupConfig{
		ServiceName:  a.cfg.Telemetry.ServiceName,
		OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return exitError(exitConfig, "initializing telemetry: %s", err)
	}
	tool.SetObserver(providers.Observer)
	defer func() {
		tool.SetObserver(nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if a.cfg.Reports.Retention > 0 {
		sweeper, err := oracle.NewRetentionSweeper(a.cfg.Reports.DownloadsDir, a.cfg.Reports.Retention, a.cfg.Reports.RetentionSchedule, a.logger)
		if err != nil {
			return exitError(exitConfig, "%s", err)
		}
		go sweeper.Run(ctx)
	}

	server := a.newServer(toolTimeout)
	transport := mcp.NewStdioTransport(cmd.InOrStdin(), cmd.OutOrStdout())
	a.logger.Info("starting mcp server",
		"version", a.version,
		"environment", a.cfg.Environment,
		"config", a.cfg.Source,
	)
	if err := server.Serve(ctx, transport); err != nil {
		return exitError(exitRuntime, "serving: %s", err)
	}
	a.logger.Info("mcp server stopped")
	return nil
}

// NewRootCmd returns the command tree. Running the root command without a
// subcommand serves MCP over stdio.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-oracle-scm",
		Short: "Oracle SCM MCP server",
		Long:  "mcp-oracle-scm exposes Oracle Fusion supply chain reports and REST resources as MCP tools over stdio.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to mcp-oracle-scm.yaml")
	root.PersistentFlags().String("env-file", "", "Path to a .env file (default: ./.env when present)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging to the log directory")
	addServeFlags(root)

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("mcp-oracle-scm version %s\n", version))

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewAuthCmd())
	root.AddCommand(NewRunsCmd())
	return root
}
