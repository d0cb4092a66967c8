package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"squeeze/internal/batch"
	"squeeze/internal/config"
	"squeeze/internal/deps"
	"squeeze/internal/logging"
	"squeeze/internal/services"
	"squeeze/internal/services/ffmpeg"
	"squeeze/internal/stats"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run SOURCE_DIR DEST_DIR",
		Short: "Re-encode or move every video under SOURCE_DIR into DEST_DIR",
		Long: strings.TrimSpace(`
Walks SOURCE_DIR, re-encodes every video file to HEVC/MP4 under DEST_DIR
(mirroring the directory structure), and moves files that are already HEVC
or that did not shrink. Sources are deleted only after their output is
published. Interrupting the run cleans up staging files and reports the
statistics gathered so far.`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, args[0], args[1])
		},
	}
}

func runBatch(cmd *cobra.Command, cctx *commandContext, srcDir, destDir string) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newRunLogger(cfg)
	if err != nil {
		return err
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "run", "preflight",
			"missing required binaries: "+strings.Join(missing, ", "), nil)
	}

	acc := stats.NewAccumulator()
	orch, err := batch.New(batch.Options{
		SourceRoot: srcDir,
		DestRoot:   destDir,
		Config:     cfg,
		Logger:     logger,
		Prober:     batch.NewFFprobeProber(cfg.Transcode.FFprobeBinary),
		Transcoder: ffmpeg.NewCLI(
			ffmpeg.WithBinary(cfg.Transcode.FFmpegBinary),
			ffmpeg.WithEncoder(cfg.Transcode.Encoder),
			ffmpeg.WithPreset(cfg.Transcode.Preset),
			ffmpeg.WithCRF(cfg.Transcode.CRF),
		),
		Stats: acc,
	})
	if err != nil {
		return err
	}

	runErr := orch.Run(signalCtx)
	cancelled := errors.Is(runErr, services.ErrInterrupted)
	if runErr != nil && !cancelled {
		return runErr
	}

	report := acc.Render(time.Since(acc.StartedAt()), cancelled)
	fmt.Fprintln(cmd.OutOrStdout(), report)
	return runErr
}

// newRunLogger builds the per-run logger: stdout plus a timestamped file in
// the configured log directory, tagged with a unique run ID. Console format
// falls back to JSON when stdout is not a terminal.
func newRunLogger(cfg *config.Config) (*slog.Logger, error) {
	format := cfg.Logging.Format
	if format == "console" && !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		format = "json"
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("squeeze-%s.log", stamp))

	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.With(logging.String(logging.FieldRunID, uuid.NewString())), nil
}
