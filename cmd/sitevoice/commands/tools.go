package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildlink-za/sitevoice/pkg/cli"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and invoke assistant tools",
	Long: `Inspect the tool manifest the assistant is given, or invoke a tool
directly for debugging, without starting a live session.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		reg, err := tool.NewRegistry(svc.Tools()...)
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(reg.Manifest())
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, d := range reg.Manifest() {
			fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Description)
		}
		return w.Flush()
	},
}

var toolsInvokeCmd = &cobra.Command{
	Use:   "invoke <name>",
	Short: "Invoke a tool with arguments from a file or inline JSON",
	Long: `Invoke a tool by name.

Arguments come from --file (YAML or JSON) or --args (inline JSON).

Example:
  sitevoice tools invoke search_catalog --args '{"query":"cement"}'
  sitevoice tools invoke record_expense -f expense.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		argsFile, err := cmd.Flags().GetString("file")
		if err != nil {
			return fmt.Errorf("failed to read 'file' flag: %w", err)
		}
		inline, err := cmd.Flags().GetString("args")
		if err != nil {
			return fmt.Errorf("failed to read 'args' flag: %w", err)
		}

		rawArgs := inline
		if argsFile != "" {
			var v any
			if err := cli.LoadRequest(argsFile, &v); err != nil {
				return err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			rawArgs = string(b)
		}

		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		reg, err := tool.NewRegistry(svc.Tools()...)
		if err != nil {
			return err
		}
		t, ok := reg.Lookup(args[0])
		if !ok {
			return fmt.Errorf("no tool named %q", args[0])
		}

		out, err := t.Invoke(cmd.Context(), rawArgs)
		if err != nil {
			return err
		}
		if r, ok := out.(tool.Result); ok {
			if r.Alert != nil {
				cli.PrintInfo("%s: %s", r.Alert.Title, r.Alert.Body)
			}
			out = r.Payload
		}
		return outputResult(out)
	},
}

func init() {
	toolsInvokeCmd.Flags().StringP("file", "f", "", "arguments file (YAML or JSON)")
	toolsInvokeCmd.Flags().String("args", "", "inline JSON arguments")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsInvokeCmd)
}
