package batch_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"squeeze/internal/batch"
	"squeeze/internal/logging"
	"squeeze/internal/services"
	"squeeze/internal/services/ffmpeg"
	"squeeze/internal/staging"
	"squeeze/internal/stats"
	"squeeze/internal/testsupport"
)

type fakeProber struct {
	codec    string
	duration float64
	err      error
	calls    []string
}

func (p *fakeProber) Probe(ctx context.Context, path string) (batch.ProbeResult, error) {
	p.calls = append(p.calls, path)
	if p.err != nil {
		return batch.ProbeResult{}, p.err
	}
	return batch.ProbeResult{Codec: p.codec, DurationSeconds: p.duration}, nil
}

type fakeTranscoder struct {
	run   func(ctx context.Context, req ffmpeg.Request) error
	calls []ffmpeg.Request
}

func (f *fakeTranscoder) Transcode(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
	f.calls = append(f.calls, req)
	if f.run == nil {
		return nil
	}
	return f.run(ctx, req)
}

// writeOutput is a transcoder behavior that produces an output of the given size.
func writeOutput(size int64) func(ctx context.Context, req ffmpeg.Request) error {
	return func(ctx context.Context, req ffmpeg.Request) error {
		return os.WriteFile(req.Output, make([]byte, size), 0o644)
	}
}

type fixture struct {
	srcRoot  string
	destRoot string
	orch     *batch.Orchestrator
	stats    *stats.Accumulator
}

func newFixture(t *testing.T, prober batch.Prober, transcoder ffmpeg.Client) fixture {
	t.Helper()
	base := t.TempDir()
	srcRoot := filepath.Join(base, "src")
	destRoot := filepath.Join(base, "dest")
	if err := os.MkdirAll(srcRoot, 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	acc := stats.NewAccumulator()
	orch, err := batch.New(batch.Options{
		SourceRoot: srcRoot,
		DestRoot:   destRoot,
		Config:     testsupport.NewConfig(t),
		Logger:     logging.NewNop(),
		Prober:     prober,
		Transcoder: transcoder,
		Stats:      acc,
	})
	if err != nil {
		t.Fatalf("batch.New: %v", err)
	}
	return fixture{srcRoot: srcRoot, destRoot: destRoot, orch: orch, stats: acc}
}

func TestRunMovesFileAlreadyInTargetCodec(t *testing.T) {
	prober := &fakeProber{codec: "hevc"}
	transcoder := &fakeTranscoder{}
	fx := newFixture(t, prober, transcoder)

	src := filepath.Join(fx.srcRoot, "shows", "pilot.mkv")
	testsupport.WriteFile(t, src, 50)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	dest := filepath.Join(fx.destRoot, "shows", "pilot.mp4")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected published destination: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be deleted, err=%v", err)
	}
	if len(transcoder.calls) != 0 {
		t.Fatalf("transcoder must not run for already-target files")
	}

	snap := fx.stats.Snapshot()
	if snap.Processed != 1 || snap.Moved != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
	if snap.OriginalBytes != 50 || snap.FinalBytes != 50 {
		t.Fatalf("move must contribute equal byte totals: %+v", snap)
	}
	if ratio, ok := snap.CompressionRatio(); !ok || ratio != 100 {
		t.Fatalf("expected 100%% ratio, got %v ok=%v", ratio, ok)
	}
}

func TestRunCompressesWhenTranscodeShrinks(t *testing.T) {
	prober := &fakeProber{codec: "h264", duration: 3600}
	transcoder := &fakeTranscoder{run: writeOutput(40)}
	fx := newFixture(t, prober, transcoder)

	src := filepath.Join(fx.srcRoot, "movie.avi")
	testsupport.WriteFile(t, src, 100)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	dest := filepath.Join(fx.destRoot, "movie.mp4")
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("expected destination: %v", err)
	}
	if info.Size() != 40 {
		t.Fatalf("expected transcoded 40 bytes at destination, got %d", info.Size())
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source deleted, err=%v", err)
	}
	if len(transcoder.calls) != 1 {
		t.Fatalf("expected one transcode, got %d", len(transcoder.calls))
	}
	if transcoder.calls[0].DurationSeconds != 3600 {
		t.Fatalf("probe duration should feed the transcode request, got %v", transcoder.calls[0].DurationSeconds)
	}

	snap := fx.stats.Snapshot()
	if snap.Compressed != 1 || snap.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
	if snap.OriginalBytes != 100 || snap.FinalBytes != 40 {
		t.Fatalf("unexpected byte totals: %+v", snap)
	}
	if snap.SpaceSaved() != 60 {
		t.Fatalf("expected 60 bytes saved, got %d", snap.SpaceSaved())
	}
}

func TestRunFallsBackToMoveWhenTranscodeGrows(t *testing.T) {
	prober := &fakeProber{codec: "h264"}
	transcoder := &fakeTranscoder{run: writeOutput(120)}
	fx := newFixture(t, prober, transcoder)

	src := filepath.Join(fx.srcRoot, "movie.avi")
	testsupport.WriteFile(t, src, 100)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	dest := filepath.Join(fx.destRoot, "movie.mp4")
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("expected destination: %v", err)
	}
	if info.Size() != 100 {
		t.Fatalf("fallback must keep the original bytes, got %d", info.Size())
	}

	snap := fx.stats.Snapshot()
	if snap.Moved != 1 || snap.Compressed != 0 {
		t.Fatalf("expected moved outcome, got %+v", snap)
	}
	if snap.FinalBytes != 100 {
		t.Fatalf("final size must equal original on fallback, got %d", snap.FinalBytes)
	}
	assertNoStagingFiles(t, fx.destRoot)
}

func TestRunRecordsFailureAndContinues(t *testing.T) {
	prober := &fakeProber{codec: "h264"}
	transcoder := &fakeTranscoder{run: func(ctx context.Context, req ffmpeg.Request) error {
		if filepath.Base(req.Input) == "bad.avi" {
			return errors.New("encoder exploded")
		}
		return writeOutput(10)(ctx, req)
	}}
	fx := newFixture(t, prober, transcoder)

	bad := filepath.Join(fx.srcRoot, "bad.avi")
	good := filepath.Join(fx.srcRoot, "good.avi")
	testsupport.WriteFile(t, bad, 100)
	testsupport.WriteFile(t, good, 100)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, err := os.Stat(bad); err != nil {
		t.Fatalf("failed source must be retained: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fx.destRoot, "bad.mp4")); !os.IsNotExist(err) {
		t.Fatalf("no destination may exist for a failed file, err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(fx.destRoot, "good.mp4")); err != nil {
		t.Fatalf("later file must still be processed: %v", err)
	}

	snap := fx.stats.Snapshot()
	if snap.Processed != 2 || snap.Failed != 1 || snap.Compressed != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
	if snap.Processed != snap.Moved+snap.Compressed+snap.Failed {
		t.Fatalf("sum invariant violated: %+v", snap)
	}
	assertNoStagingFiles(t, fx.destRoot)
}

func TestRunTreatsProbeErrorAsNeedsTranscode(t *testing.T) {
	prober := &fakeProber{err: errors.New("unreadable")}
	transcoder := &fakeTranscoder{run: writeOutput(10)}
	fx := newFixture(t, prober, transcoder)

	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "clip.mov"), 100)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(transcoder.calls) != 1 {
		t.Fatalf("expected transcode after probe failure, got %d calls", len(transcoder.calls))
	}
	if fx.stats.Snapshot().Compressed != 1 {
		t.Fatalf("unexpected stats: %+v", fx.stats.Snapshot())
	}
}

func TestRunSkipsNonVideoFiles(t *testing.T) {
	prober := &fakeProber{codec: "hevc"}
	fx := newFixture(t, prober, &fakeTranscoder{})

	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "cover.jpg"), 10)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if snap := fx.stats.Snapshot(); snap.Processed != 0 {
		t.Fatalf("expected nothing processed, got %+v", snap)
	}
	if len(prober.calls) != 0 {
		t.Fatalf("prober must not run for non-video files")
	}
}

func TestRunCancellationMidTranscode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	prober := &fakeProber{codec: "h264"}
	transcoder := &fakeTranscoder{run: func(tctx context.Context, req ffmpeg.Request) error {
		if filepath.Base(req.Input) == "b.avi" {
			// Simulate the interrupt arriving mid-encode: partial staging
			// output exists and the subprocess dies with the context.
			if err := os.WriteFile(req.Output, []byte("partial"), 0o644); err != nil {
				return err
			}
			cancel()
			return context.Canceled
		}
		return writeOutput(10)(tctx, req)
	}}
	fx := newFixture(t, prober, transcoder)

	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "a.avi"), 100)
	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "b.avi"), 100)
	testsupport.WriteFile(t, filepath.Join(fx.srcRoot, "c.avi"), 100)

	err := fx.orch.Run(ctx)
	if !errors.Is(err, services.ErrInterrupted) {
		t.Fatalf("expected interrupted error, got %v", err)
	}

	snap := fx.stats.Snapshot()
	if snap.Processed != 1 || snap.Compressed != 1 {
		t.Fatalf("stats must only reflect fully completed files: %+v", snap)
	}
	for _, name := range []string{"b.avi", "c.avi"} {
		if _, err := os.Stat(filepath.Join(fx.srcRoot, name)); err != nil {
			t.Fatalf("unprocessed source %s must be retained: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(fx.destRoot, "c.mp4")); !os.IsNotExist(err) {
		t.Fatalf("no file may start after cancellation, err=%v", err)
	}
	assertNoStagingFiles(t, fx.destRoot)
}

func TestRunRefusesSecondInstanceOnSameDestination(t *testing.T) {
	prober := &fakeProber{codec: "hevc"}
	fx := newFixture(t, prober, &fakeTranscoder{})

	other := flock.New(filepath.Join(fx.destRoot, ".squeeze.lock"))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not take competing lock: %v", err)
	}
	defer other.Unlock() //nolint:errcheck

	if err := fx.orch.Run(context.Background()); !errors.Is(err, services.ErrUsage) {
		t.Fatalf("expected usage error for locked destination, got %v", err)
	}
}

func TestNewRejectsMissingSource(t *testing.T) {
	base := t.TempDir()
	_, err := batch.New(batch.Options{
		SourceRoot: filepath.Join(base, "absent"),
		DestRoot:   filepath.Join(base, "dest"),
		Config:     testsupport.NewConfig(t),
		Logger:     logging.NewNop(),
		Prober:     &fakeProber{},
		Transcoder: &fakeTranscoder{},
	})
	if !errors.Is(err, services.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestNewRejectsEqualSourceAndDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "movie.mp4")
	testsupport.WriteFile(t, src, 50)

	_, err := batch.New(batch.Options{
		SourceRoot: root,
		DestRoot:   root,
		Config:     testsupport.NewConfig(t),
		Logger:     logging.NewNop(),
		Prober:     &fakeProber{codec: "hevc"},
		Transcoder: &fakeTranscoder{},
	})
	if !errors.Is(err, services.ErrUsage) {
		t.Fatalf("expected usage error for equal roots, got %v", err)
	}
	// An in-place run must never get far enough to touch the file.
	if _, statErr := os.Stat(src); statErr != nil {
		t.Fatalf("source must remain untouched: %v", statErr)
	}
}

func TestRunWarnsWhenDestinationAlreadyExists(t *testing.T) {
	base := t.TempDir()
	srcRoot := filepath.Join(base, "src")
	destRoot := filepath.Join(base, "dest")
	if err := os.MkdirAll(srcRoot, 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}

	// Both sources collide on dest/a.mp4; the second publish overwrites the
	// first and must say so.
	testsupport.WriteFile(t, filepath.Join(srcRoot, "a.avi"), 100)
	testsupport.WriteFile(t, filepath.Join(srcRoot, "a.mkv"), 100)

	var logBuf bytes.Buffer
	acc := stats.NewAccumulator()
	orch, err := batch.New(batch.Options{
		SourceRoot: srcRoot,
		DestRoot:   destRoot,
		Config:     testsupport.NewConfig(t),
		Logger:     slog.New(slog.NewTextHandler(&logBuf, nil)),
		Prober:     &fakeProber{codec: "h264", duration: 10},
		Transcoder: &fakeTranscoder{run: writeOutput(10)},
		Stats:      acc,
	})
	if err != nil {
		t.Fatalf("batch.New: %v", err)
	}
	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !strings.Contains(logBuf.String(), "destination already exists") {
		t.Fatalf("expected overwrite warning in log output:\n%s", logBuf.String())
	}
	if _, err := os.Stat(filepath.Join(destRoot, "a.mp4")); err != nil {
		t.Fatalf("expected published destination: %v", err)
	}
	snap := acc.Snapshot()
	if snap.Processed != 2 || snap.Compressed != 2 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func assertNoStagingFiles(t *testing.T, root string) {
	t.Helper()
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && staging.IsStagingPath(entry.Name()) {
			t.Fatalf("staging file %s left behind", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk destination: %v", err)
	}
}
