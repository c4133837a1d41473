package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	captureimpl "github.com/foxseedlab/mojiokoshin-live/external/capture"
	configloader "github.com/foxseedlab/mojiokoshin-live/external/config"
	discordimpl "github.com/foxseedlab/mojiokoshin-live/external/discord"
	"github.com/foxseedlab/mojiokoshin-live/external/display"
	webhookimpl "github.com/foxseedlab/mojiokoshin-live/external/webhook"
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	discordpkg "github.com/foxseedlab/mojiokoshin-live/internal/discord"
	"github.com/foxseedlab/mojiokoshin-live/internal/recorder"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	ackMode   bool
	duration  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "recorder",
	Short: "Stream microphone audio to a transcription server",
	Long:  "Captures audio from the default input device, streams it block by block to a transcription server and prints the live transcript.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		initLogger(cfg)
		return record(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server-url", "", "transcription server websocket URL (overrides SERVER_URL)")
	rootCmd.Flags().BoolVar(&ackMode, "ack", false, "request acknowledged mode (overrides ACK_MODE)")
	rootCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long; 0 records until interrupted (overrides RECORD_DURATION)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.RecorderConfig, error) {
	cfg, err := configloader.LoadRecorder()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("server-url") {
		cfg.ServerURL = serverURL
	}
	if cmd.Flags().Changed("ack") {
		cfg.AckMode = ackMode
	}
	if cmd.Flags().Changed("duration") {
		cfg.Duration = duration
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// initLogger keeps stdout for the transcript.
func initLogger(cfg *config.RecorderConfig) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.RecorderConfig) (do.Injector, error) {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	captureimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)

	sinks := []transcript.Sink{display.NewTerminal(os.Stdout)}
	if cfg.DiscordToken != "" {
		discordimpl.RegisterDI(injector)
		mirror, err := do.Invoke[*discordpkg.Mirror](injector)
		if err != nil {
			return nil, fmt.Errorf("failed to set up discord mirror: %w", err)
		}
		sinks = append(sinks, mirror)
	}
	do.ProvideValue(injector, transcript.NewAssembler(sinks...))
	recorder.RegisterDI(injector)

	return injector, nil
}

func record(cfg *config.RecorderConfig) error {
	injector, err := setupDI(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = injector.Shutdown() }()

	controller, err := do.Invoke[*recorder.Controller](injector)
	if err != nil {
		return fmt.Errorf("failed to resolve recorder: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	if err := controller.Start(ctx); err != nil {
		return err
	}

	var limit <-chan time.Time
	if cfg.Duration > 0 {
		timer := time.NewTimer(cfg.Duration)
		defer timer.Stop()
		limit = timer.C
	}

	select {
	case <-ctx.Done():
		slog.Info("interrupted; stopping recording")
	case <-limit:
		slog.Info("recording duration reached", "duration", cfg.Duration.String())
	case <-controller.Done():
		slog.Warn("recording ended by the server connection")
	}
	if err := controller.Stop(); err != nil {
		return err
	}

	text := controller.Transcript()
	if mirror, err := do.Invoke[*discordpkg.Mirror](injector); err == nil {
		mirror.PostTranscript(recorder.TranscriptFilename(startedAt), text)
	}
	fmt.Fprintf(os.Stdout, "\n--- transcript ---\n%s\n", text)
	return nil
}
