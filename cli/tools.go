package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and call the registered tools",
	}
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsCallCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE:  runToolsList,
	}
	cmd.Flags().Bool("json", false, "Print tool descriptors with input schemas as JSON")
	return cmd
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	descriptors := a.registry.Descriptors()
	if asJSON {
		type toolJSON struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		}
		out := make([]toolJSON, 0, len(descriptors))
		for _, d := range descriptors {
			out = append(out, toolJSON{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema()})
		}
		return writeJSON(cmd, out)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tREQUIRED\tDESCRIPTION")
	for _, d := range descriptors {
		var required []string
		for name, spec := range d.Inputs {
			if spec.Required {
				required = append(required, name)
			}
		}
		requiredText := "-"
		if len(required) > 0 {
			slices.Sort(required)
			requiredText = strings.Join(required, ",")
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", d.Name, requiredText, d.Description)
	}
	return writer.Flush()
}

func newToolsCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Invoke one tool in-process and print the response",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsCall,
	}
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().Duration("tool-timeout", 0, "Call timeout (default: timeouts.tool from config)")
	return cmd
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	rawArgs, _ := cmd.Flags().GetString("args")
	toolTimeout, _ := cmd.Flags().GetDuration("tool-timeout")

	var arguments map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
		return exitError(exitConfig, "--args must be a JSON object: %s", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	server := a.newServer(toolTimeout)
	started := time.Now()
	resp := server.CallTool(cmd.Context(), name, arguments)
	a.logger.Debug("tools call finished", "tool", name, "ok", resp.OK, "duration", time.Since(started))

	if err := writeJSON(cmd, resp); err != nil {
		return err
	}
	if !resp.OK {
		return exitError(exitToolFailed, "tool %s failed: %s", name, resp.Error.Message)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding output: %s", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
