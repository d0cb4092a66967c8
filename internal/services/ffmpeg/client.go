package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"squeeze/internal/services"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures ffmpeg progress events parsed from -progress output.
type ProgressUpdate struct {
	OutTimeSeconds float64
	FPS            float64
	Speed          string
	Percent        float64
}

// Request describes a single transcode invocation.
type Request struct {
	Input  string
	Output string
	// DurationSeconds is the source duration, used to derive Percent in
	// progress updates. Zero leaves Percent at -1.
	DurationSeconds float64
}

// Client defines transcoding behaviour.
type Client interface {
	Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithEncoder overrides the video encoder.
func WithEncoder(encoder string) Option {
	return func(c *CLI) {
		if encoder != "" {
			c.encoder = encoder
		}
	}
}

// WithPreset overrides the encoder preset.
func WithPreset(preset string) Option {
	return func(c *CLI) {
		if preset != "" {
			c.preset = preset
		}
	}
}

// WithCRF overrides the constant rate factor.
func WithCRF(crf int) Option {
	return func(c *CLI) {
		if crf > 0 {
			c.crf = crf
		}
	}
}

// CLI wraps the ffmpeg command-line encoder with fixed HEVC/MP4 parameters.
type CLI struct {
	binary  string
	encoder string
	preset  string
	crf     int
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", encoder: "libx265", preset: "medium", crf: 28}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcode launches ffmpeg and blocks until it exits. Progress callbacks are
// fed from the -progress key=value stream. Cancelling the context terminates
// the subprocess.
func (c *CLI) Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(req.Input) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return errors.New("output path required")
	}

	args := []string{
		"-y", "-nostdin",
		"-v", "error",
		"-progress", "pipe:1",
		"-i", req.Input,
		"-c:v", c.encoder,
		"-preset", c.preset,
		"-crf", strconv.Itoa(c.crf),
		"-tag:v", "hvc1",
		"-c:a", "copy",
		"-map_metadata", "0",
		// The staging suffix hides the container, so name it explicitly.
		"-f", "mp4",
		req.Output,
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var update ProgressUpdate
	var tail []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			// Anything that is not a progress pair is diagnostic output.
			tail = appendTail(tail, line)
			continue
		}
		switch key {
		case "out_time_us":
			if us, err := strconv.ParseFloat(value, 64); err == nil {
				update.OutTimeSeconds = us / 1e6
			}
		case "out_time_ms":
			if ms, err := strconv.ParseFloat(value, 64); err == nil {
				update.OutTimeSeconds = ms / 1e6
			}
		case "fps":
			if fps, err := strconv.ParseFloat(value, 64); err == nil {
				update.FPS = fps
			}
		case "speed":
			update.Speed = strings.TrimSpace(value)
		case "progress":
			update.Percent = percentOf(update.OutTimeSeconds, req.DurationSeconds)
			if progress != nil {
				progress(update)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := "encode failed"
		if len(tail) > 0 {
			detail = "encode failed: " + strings.Join(tail, "; ")
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "transcode", detail, err)
	}
	return nil
}

func percentOf(outSeconds, totalSeconds float64) float64 {
	if totalSeconds <= 0 {
		return -1
	}
	percent := outSeconds / totalSeconds * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}

const tailLimit = 5

func appendTail(tail []string, line string) []string {
	tail = append(tail, line)
	if len(tail) > tailLimit {
		tail = tail[len(tail)-tailLimit:]
	}
	return tail
}

var _ Client = (*CLI)(nil)
