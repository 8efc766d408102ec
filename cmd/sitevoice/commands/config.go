package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildlink-za/sitevoice/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple connection profiles,
similar to kubectl's context management.

Configuration is stored in ~/.sitevoice/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Either --api-key (direct Gemini connection) or --gateway-url (site
gateway) is required.

Example:
  sitevoice config add-context site --api-key YOUR_API_KEY
  sitevoice config add-context office --gateway-url wss://copilot.example/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		apiKey, err := cmd.Flags().GetString("api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'api-key' flag: %w", err)
		}
		gatewayURL, err := cmd.Flags().GetString("gateway-url")
		if err != nil {
			return fmt.Errorf("failed to read 'gateway-url' flag: %w", err)
		}
		if apiKey == "" && gatewayURL == "" {
			return fmt.Errorf("one of --api-key or --gateway-url is required")
		}

		model, err := cmd.Flags().GetString("model")
		if err != nil {
			return fmt.Errorf("failed to read 'model' flag: %w", err)
		}
		voice, err := cmd.Flags().GetString("voice")
		if err != nil {
			return fmt.Errorf("failed to read 'voice' flag: %w", err)
		}
		instructions, err := cmd.Flags().GetString("instructions")
		if err != nil {
			return fmt.Errorf("failed to read 'instructions' flag: %w", err)
		}
		videoRate, err := cmd.Flags().GetFloat64("video-rate")
		if err != nil {
			return fmt.Errorf("failed to read 'video-rate' flag: %w", err)
		}
		idleTimeout, err := cmd.Flags().GetInt("idle-timeout")
		if err != nil {
			return fmt.Errorf("failed to read 'idle-timeout' flag: %w", err)
		}
		frameDir, err := cmd.Flags().GetString("frame-dir")
		if err != nil {
			return fmt.Errorf("failed to read 'frame-dir' flag: %w", err)
		}

		ctx := &cli.Context{
			APIKey:         apiKey,
			GatewayURL:     gatewayURL,
			Model:          model,
			Voice:          voice,
			Instructions:   instructions,
			VideoRate:      videoRate,
			IdleTimeoutSec: idleTimeout,
			FrameDir:       frameDir,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tENDPOINT\tMODEL")

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			endpoint := ctx.GatewayURL
			if endpoint == "" {
				endpoint = "(gemini direct)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, endpoint, ctx.Model)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for _, name := range cfg.ListContexts() {
				ctx := cfg.Contexts[name]
				fmt.Printf("\n  %s:\n", name)
				if ctx.APIKey != "" {
					fmt.Printf("    API Key: %s\n", cli.MaskAPIKey(ctx.APIKey))
				}
				if ctx.GatewayURL != "" {
					fmt.Printf("    Gateway: %s\n", ctx.GatewayURL)
				}
				if ctx.Model != "" {
					fmt.Printf("    Model: %s\n", ctx.Model)
				}
				if ctx.Voice != "" {
					fmt.Printf("    Voice: %s\n", ctx.Voice)
				}
				if ctx.VideoRate > 0 {
					fmt.Printf("    Video rate: %.2f fps\n", ctx.VideoRate)
				}
				if ctx.IdleTimeoutSec > 0 {
					fmt.Printf("    Idle timeout: %ds\n", ctx.IdleTimeoutSec)
				}
				if ctx.FrameDir != "" {
					fmt.Printf("    Frame dir: %s\n", ctx.FrameDir)
				}
			}
		}

		return nil
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().String("api-key", "", "Gemini API key")
	configAddContextCmd.Flags().String("gateway-url", "", "Copilot gateway WebSocket URL")
	configAddContextCmd.Flags().String("model", "", "Live model override")
	configAddContextCmd.Flags().String("voice", "", "Prebuilt voice name")
	configAddContextCmd.Flags().String("instructions", "", "System instructions for the assistant")
	configAddContextCmd.Flags().Float64("video-rate", 0, "Camera frames per second")
	configAddContextCmd.Flags().Int("idle-timeout", 0, "Idle timeout in seconds (0 disables)")
	configAddContextCmd.Flags().String("frame-dir", "", "Directory of still images standing in for a camera")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
