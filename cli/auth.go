package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewAuthCmd creates the "auth" command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Oracle OAuth session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store the token",
		Args:  cobra.NoArgs,
		RunE:  runAuthLogin,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE:  runAuthLogout,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored token state",
		Args:  cobra.NoArgs,
		RunE:  runAuthStatus,
	})
	return cmd
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()
	auth, err := a.requireAuth()
	if err != nil {
		return err
	}

	tok, err := auth.Login(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "login failed: %s", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (token expires %s)\n", a.cfg.Environment, tok.Expiry.Format(time.RFC3339))
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()
	auth, err := a.requireAuth()
	if err != nil {
		return err
	}

	if err := auth.Logout(cmd.Context()); err != nil {
		return exitError(exitRuntime, "%s", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", a.cfg.Environment)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()
	auth, err := a.requireAuth()
	if err != nil {
		return err
	}

	status, err := auth.Status(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "%s", err)
	}
	return writeJSON(cmd, status)
}
