package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/buildlink-za/sitevoice/pkg/cli"
	"github.com/buildlink-za/sitevoice/pkg/live"
	"github.com/buildlink-za/sitevoice/pkg/live/geminilive"
	"github.com/buildlink-za/sitevoice/pkg/media/filecam"
	"github.com/buildlink-za/sitevoice/pkg/media/malgomic"
	"github.com/buildlink-za/sitevoice/pkg/media/otospeaker"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

var (
	// Command-line overrides
	flagModel        string
	flagVoice        string
	flagInstructions string
	flagVideoRate    float64
	flagIdleTimeout  int
	flagFrameDir     string
	flagNoSave       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live voice session",
	Long: `Start a live voice session with the assistant.

The microphone streams to the assistant continuously and replies play on
the speaker. Marketplace tools (catalog search, project list, expense
capture) are available to the assistant for the whole session.

Inside the session:
  v      toggle video frames from the configured frame directory
  c      clear the on-screen transcript
  q      end the session

The transcript is saved under ~/.sitevoice/transcripts/ when the
session ends.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVar(&flagModel, "model", "", "live model override")
	runCmd.Flags().StringVar(&flagVoice, "voice", "", "voice override (direct Gemini only)")
	runCmd.Flags().StringVar(&flagInstructions, "instructions", "", "system instructions override")
	runCmd.Flags().Float64Var(&flagVideoRate, "video-rate", 0, "video frames per second when video is on")
	runCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 0, "end the session after this many idle seconds (0 = never)")
	runCmd.Flags().StringVar(&flagFrameDir, "frame-dir", "", "directory of images to use as the camera feed")
	runCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "do not save the transcript on exit")
}

func runSession(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if flagModel != "" {
		cliCtx.Model = flagModel
	}
	if flagVoice != "" {
		cliCtx.Voice = flagVoice
	}
	if flagInstructions != "" {
		cliCtx.Instructions = flagInstructions
	}
	if flagVideoRate != 0 {
		cliCtx.VideoRate = flagVideoRate
	}
	if flagIdleTimeout != 0 {
		cliCtx.IdleTimeoutSec = flagIdleTimeout
	}
	if flagFrameDir != "" {
		cliCtx.FrameDir = flagFrameDir
	}

	dialer, err := buildDialer(cmd, cliCtx)
	if err != nil {
		return err
	}

	// Marketplace tools back the assistant for the whole session.
	market, kv, err := openMarket()
	if err != nil {
		return err
	}
	defer kv.Close()

	registry, err := tool.NewRegistry(market.Tools()...)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	// Logs render inside the TUI instead of corrupting the alt screen.
	logWriter := cli.NewLogWriter(200)
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: level}))

	events := make(chan sessionEvent, 64)
	cfg := live.Config{
		Dialer:       dialer,
		Microphone:   &malgomic.Microphone{},
		Speaker:      &otospeaker.Speaker{},
		VideoRate:    cliCtx.VideoRate,
		Instructions: cliCtx.Instructions,
		Tools:        registry,
		IdleTimeout:  time.Duration(cliCtx.IdleTimeoutSec) * time.Second,
		Logger:       logger,
		OnActivity: func(a live.Activity) {
			postEvent(events, sessionEvent{kind: eventActivity, activity: a})
		},
		OnTranscript: func(e live.Entry) {
			postEvent(events, sessionEvent{kind: eventTranscript, entry: e})
		},
		OnAlert: func(a tool.Alert) {
			postEvent(events, sessionEvent{kind: eventAlert, alert: a})
		},
		OnError: func(err error) {
			postEvent(events, sessionEvent{kind: eventError, err: err})
		},
	}
	if cliCtx.FrameDir != "" {
		cfg.Camera = &filecam.Camera{Dir: cliCtx.FrameDir}
	}

	copilot, err := live.New(cfg)
	if err != nil {
		return err
	}
	defer copilot.Deactivate()

	if err := copilot.Activate(cmd.Context()); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}

	model := newSessionModel(copilot, cliCtx.Name, events, logWriter)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("session ui: %w", err)
	}
	copilot.Deactivate()

	if flagNoSave {
		return nil
	}
	return saveTranscript(copilot.Transcript())
}

// buildDialer picks the transport: gateway WebSocket when the context
// names one, direct Gemini Live otherwise.
func buildDialer(cmd *cobra.Command, cliCtx *cli.Context) (live.Dialer, error) {
	if cliCtx.GatewayURL != "" {
		return &live.WebSocketDialer{URL: cliCtx.GatewayURL}, nil
	}
	if cliCtx.APIKey == "" {
		return nil, fmt.Errorf("context %q has neither an API key nor a gateway URL", cliCtx.Name)
	}
	client, err := genai.NewClient(cmd.Context(), &genai.ClientConfig{APIKey: cliCtx.APIKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &geminilive.Dialer{
		Client: client,
		Model:  cliCtx.Model,
		Voice:  cliCtx.Voice,
	}, nil
}

func saveTranscript(entries []live.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	paths, err := cli.NewPaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureTranscriptDir(); err != nil {
		return err
	}
	name := time.Now().Format("20060102-150405") + ".json"
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	path := paths.TranscriptPath(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	cli.PrintSuccess("Transcript saved to %s", path)
	return nil
}

// postEvent drops events rather than blocking copilot callbacks when
// the UI falls behind.
func postEvent(ch chan sessionEvent, e sessionEvent) {
	select {
	case ch <- e:
	default:
	}
}
