package batch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"squeeze/internal/config"
	"squeeze/internal/fileutil"
	"squeeze/internal/logging"
	"squeeze/internal/services"
	"squeeze/internal/services/ffmpeg"
	"squeeze/internal/staging"
	"squeeze/internal/stats"
)

// ProbeResult carries what the pipeline needs from a codec inspection.
type ProbeResult struct {
	Codec           string
	DurationSeconds float64
}

// Prober answers whether a file already satisfies the target codec.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// Options configures an Orchestrator.
type Options struct {
	SourceRoot string
	DestRoot   string
	Config     *config.Config
	Logger     *slog.Logger
	Prober     Prober
	Transcoder ffmpeg.Client
	Stats      *stats.Accumulator
}

// Orchestrator walks the source tree and drives the per-file pipeline:
// probe, policy, transcode or copy, atomic publish, stats update. Files are
// processed strictly sequentially.
type Orchestrator struct {
	srcRoot    string
	destRoot   string
	cfg        *config.Config
	logger     *slog.Logger
	prober     Prober
	transcoder ffmpeg.Client
	stats      *stats.Accumulator
	lock       *flock.Flock
}

// lockFileName guards against two runs sharing one destination root.
const lockFileName = ".squeeze.lock"

// New validates the roots and constructs an orchestrator. The source root
// must be an existing directory; the destination root is created if absent.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new", "config is required", nil)
	}
	if opts.Prober == nil || opts.Transcoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new", "prober and transcoder are required", nil)
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewAccumulator()
	}

	srcRoot := strings.TrimSpace(opts.SourceRoot)
	destRoot := strings.TrimSpace(opts.DestRoot)
	if srcRoot == "" || destRoot == "" {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "source and destination directories are required", nil)
	}
	srcRoot, err := filepath.Abs(srcRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "resolve source directory", err)
	}
	destRoot, err = filepath.Abs(destRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "resolve destination directory", err)
	}

	if srcRoot == destRoot {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "source and destination must be different directories", nil)
	}

	info, err := os.Stat(srcRoot)
	if err != nil || !info.IsDir() {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "source directory does not exist: "+srcRoot, err)
	}
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, services.Wrap(services.ErrUsage, "batch", "new", "create destination directory", err)
	}

	return &Orchestrator{
		srcRoot:    srcRoot,
		destRoot:   destRoot,
		cfg:        opts.Config,
		logger:     logging.NewComponentLogger(opts.Logger, "batch"),
		prober:     opts.Prober,
		transcoder: opts.Transcoder,
		stats:      opts.Stats,
		lock:       flock.New(filepath.Join(destRoot, lockFileName)),
	}, nil
}

// Stats exposes the accumulator so the caller can render the final report.
func (o *Orchestrator) Stats() *stats.Accumulator {
	return o.stats
}

// Run executes the batch. It returns ErrInterrupted after a clean cancelled
// shutdown (staging swept, no partially published files) and nil on normal
// completion. Per-file failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	locked, err := o.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrTransient, "batch", "lock destination", "acquire destination lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrUsage, "batch", "lock destination", "another run already owns "+o.destRoot, nil)
	}
	defer func() {
		_ = o.lock.Unlock()
	}()

	files, err := o.enumerate()
	if err != nil {
		return services.Wrap(services.ErrTransient, "batch", "enumerate", "walk source tree", err)
	}
	o.logger.Info("starting batch",
		logging.String("source", o.srcRoot),
		logging.String("destination", o.destRoot),
		logging.Int("candidates", len(files)),
	)

	for _, src := range files {
		if ctx.Err() != nil {
			break
		}
		o.processFile(ctx, src)
	}

	if ctx.Err() != nil {
		result := staging.Sweep(o.destRoot, o.logger)
		o.logger.Warn("batch cancelled",
			logging.Int("staging_files_removed", len(result.Removed)),
		)
		return services.Wrap(services.ErrInterrupted, "batch", "run", "cancelled by signal", nil)
	}
	return nil
}

// enumerate collects every matching file under the source root. Paths are
// sorted so the processing order is repeatable across runs on the same tree.
func (o *Orchestrator) enumerate() ([]string, error) {
	var files []string
	err := filepath.WalkDir(o.srcRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// A destination nested inside the source must not be re-consumed.
			if path != o.srcRoot && path == o.destRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if staging.IsStagingPath(entry.Name()) {
			return nil
		}
		if !o.cfg.MatchesExtension(entry.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// destinationFor derives the parallel destination path: same relative
// directory, same base name, container extension forced.
func (o *Orchestrator) destinationFor(src string) (string, error) {
	rel, err := filepath.Rel(o.srcRoot, src)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(o.destRoot, stem+o.cfg.Transcode.ContainerExt), nil
}

// processFile runs the full per-file pipeline. Every error path is contained
// here; the file either ends with exactly one recorded outcome or, when the
// run was cancelled mid-flight, with none.
func (o *Orchestrator) processFile(ctx context.Context, src string) {
	started := time.Now()
	logger := o.logger.With(logging.String("file", src))
	logger.Info("processing file")

	destPath, err := o.destinationFor(src)
	if err != nil {
		o.recordFailure(logger, started, 0, "derive destination", err)
		return
	}
	stagingPath := staging.Path(destPath)

	if _, statErr := os.Stat(destPath); statErr == nil {
		// Two sources differing only in extension collide on one destination.
		logger.Warn("destination already exists and will be overwritten",
			logging.String("destination", destPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		o.recordFailure(logger, started, 0, "create destination directory", err)
		return
	}

	originalSize, err := fileutil.FileSize(src)
	if err != nil {
		o.recordFailure(logger, started, 0, "stat source", err)
		return
	}

	probe, probeErr := o.prober.Probe(ctx, src)
	if probeErr != nil {
		if ctx.Err() != nil {
			return
		}
		// An unreadable codec means the file needs a transcode, not a failure.
		logger.Warn("probe failed, assuming transcode needed", logging.Error(probeErr))
	}
	alreadyTarget := probeErr == nil && probe.Codec == o.cfg.Transcode.TargetCodec

	if alreadyTarget {
		decision := Decide(true, false, false, originalSize, 0)
		logger.Info("file already in target codec",
			logging.String("codec", probe.Codec),
			logging.String("decision", decision.String()),
		)
		o.moveOriginal(logger, started, src, destPath, stagingPath, originalSize)
		return
	}

	transcodeErr := o.transcoder.Transcode(ctx, ffmpeg.Request{
		Input:           src,
		Output:          stagingPath,
		DurationSeconds: probe.DurationSeconds,
	}, func(update ffmpeg.ProgressUpdate) {
		logger.Debug("transcode progress",
			logging.Float64("percent", update.Percent),
			logging.Float64("fps", update.FPS),
			logging.String("speed", update.Speed),
		)
	})
	if ctx.Err() != nil {
		// Cancelled mid-transcode: the file records no outcome and its
		// staging output is garbage.
		_ = os.Remove(stagingPath)
		return
	}
	if transcodeErr != nil {
		_ = os.Remove(stagingPath)
		o.recordFailure(logger, started, originalSize, "transcode", transcodeErr)
		return
	}

	producedSize, err := fileutil.FileSize(stagingPath)
	if err != nil {
		_ = os.Remove(stagingPath)
		o.recordFailure(logger, started, originalSize, "stat transcoded output", err)
		return
	}

	switch decision := Decide(false, true, true, originalSize, producedSize); decision {
	case DecisionCompress:
		if err := o.publish(src, destPath, stagingPath); err != nil {
			o.recordFailure(logger, started, originalSize, "publish transcoded output", err)
			return
		}
		o.stats.RecordOutcome(stats.OutcomeCompressed, originalSize, producedSize)
		logger.Info("file compressed",
			logging.String("outcome", string(stats.OutcomeCompressed)),
			logging.Int64("original_bytes", originalSize),
			logging.Int64("final_bytes", producedSize),
			logging.Duration("duration", time.Since(started)),
		)
	case DecisionMove:
		// The transcode did not shrink the file; keep the original bytes.
		logger.Info("transcoded output not smaller, keeping original",
			logging.Int64("original_bytes", originalSize),
			logging.Int64("produced_bytes", producedSize),
		)
		_ = os.Remove(stagingPath)
		o.moveOriginal(logger, started, src, destPath, stagingPath, originalSize)
	default:
		_ = os.Remove(stagingPath)
		o.recordFailure(logger, started, originalSize, "policy", errors.New("unexpected decision"))
	}
}

// moveOriginal performs the byte-preserving copy path: source into staging,
// atomic rename, then source delete.
func (o *Orchestrator) moveOriginal(logger *slog.Logger, started time.Time, src, destPath, stagingPath string, originalSize int64) {
	if err := fileutil.CopyFileVerified(src, stagingPath); err != nil {
		_ = os.Remove(stagingPath)
		o.recordFailure(logger, started, originalSize, "copy original", err)
		return
	}
	if err := o.publish(src, destPath, stagingPath); err != nil {
		o.recordFailure(logger, started, originalSize, "publish original", err)
		return
	}
	o.stats.RecordOutcome(stats.OutcomeMoved, originalSize, originalSize)
	logger.Info("file moved",
		logging.String("outcome", string(stats.OutcomeMoved)),
		logging.Int64("original_bytes", originalSize),
		logging.Duration("duration", time.Since(started)),
	)
}

// publish promotes the staging file and deletes the source. The source is
// only removed once the rename has durably placed the destination.
func (o *Orchestrator) publish(src, destPath, stagingPath string) error {
	if err := os.Rename(stagingPath, destPath); err != nil {
		_ = os.Remove(stagingPath)
		return services.Wrap(services.ErrTransient, "batch", "publish", "rename staging file", err)
	}
	if src == destPath {
		// The rename already replaced the source with the published bytes;
		// removing it would delete the destination.
		return nil
	}
	if err := os.Remove(src); err != nil {
		// The destination is published; losing the source delete is logged,
		// not fatal, and leaves both copies on disk.
		o.logger.Warn("failed to remove source after publish",
			logging.String("file", src),
			logging.Error(err),
		)
	}
	return nil
}

func (o *Orchestrator) recordFailure(logger *slog.Logger, started time.Time, originalSize int64, operation string, err error) {
	o.stats.RecordOutcome(stats.OutcomeFailed, originalSize, 0)
	logger.Error("file failed",
		logging.String("outcome", string(stats.OutcomeFailed)),
		logging.String("operation", operation),
		logging.Error(err),
		logging.Duration("duration", time.Since(started)),
	)
}
