package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/buildlink-za/sitevoice/pkg/cli"
	"github.com/buildlink-za/sitevoice/pkg/live"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect saved session transcripts",
	Long: `Inspect transcripts saved by 'sitevoice run'.

Each session is written to ~/.sitevoice/transcripts/<timestamp>.json on
exit. The show command can post-process entries with a jq filter.`,
}

var transcriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved transcripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := cli.NewPaths()
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(paths.TranscriptDir())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No transcripts saved")
				return nil
			}
			return err
		}

		var names []string
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved transcript",
	Long: `Show a saved transcript, optionally filtered with a jq expression.

Example:
  sitevoice transcript show 20240607-151233.json
  sitevoice transcript show latest --jq '.[] | select(.speaker == "user") | .text'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jqExpr, err := cmd.Flags().GetString("jq")
		if err != nil {
			return fmt.Errorf("failed to read 'jq' flag: %w", err)
		}

		paths, err := cli.NewPaths()
		if err != nil {
			return err
		}
		name := args[0]
		if name == "latest" {
			name, err = latestTranscript(paths.TranscriptDir())
			if err != nil {
				return err
			}
		}

		data, err := os.ReadFile(paths.TranscriptPath(name))
		if err != nil {
			return err
		}
		var entries []live.Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse transcript: %w", err)
		}

		if jqExpr == "" {
			if outputJSON || outputFile != "" {
				return outputResult(entries)
			}
			for _, e := range entries {
				fmt.Printf("[%s] %s: %s\n",
					e.At.Time().Format("15:04:05"), e.Speaker, e.Text)
			}
			return nil
		}
		return runJQ(jqExpr, entries)
	},
}

// runJQ applies a jq filter to the entries and prints each result.
func runJQ(expr string, entries []live.Entry) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("failed to parse jq expression: %w", err)
	}

	// gojq wants plain maps/slices, so round-trip through JSON.
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return err
	}

	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return err
		}
		switch s := v.(type) {
		case string:
			fmt.Println(s)
		default:
			out, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}
	}
	return nil
}

func latestTranscript(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no transcripts in %s", dir)
	}
	sort.Strings(names)
	return filepath.Base(names[len(names)-1]), nil
}

func init() {
	transcriptShowCmd.Flags().String("jq", "", "jq filter applied to the transcript entries")

	transcriptCmd.AddCommand(transcriptListCmd)
	transcriptCmd.AddCommand(transcriptShowCmd)
}
