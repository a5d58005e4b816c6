package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/store"
)

// NewRunsCmd creates the "runs" command group.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect BI Publisher report run history",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent report runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runRunsList,
	}
	list.Flags().Int("limit", store.DefaultRunLimit, "Maximum number of runs to show")
	list.Flags().Bool("json", false, "Print runs as JSON")
	cmd.AddCommand(list)
	return cmd
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	runs, err := a.store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return exitError(exitRuntime, "%s", err)
	}
	if asJSON {
		if runs == nil {
			runs = []oracle.RunRecord{}
		}
		return writeJSON(cmd, runs)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "STARTED\tREPORT\tSTATUS\tBYTES\tDURATION\tFILE")
	for _, run := range runs {
		file := run.FilePath
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			oracle.ReportName(run.ReportPath),
			run.Status,
			run.Bytes,
			run.Duration.Round(time.Millisecond),
			file,
		)
	}
	return writer.Flush()
}
