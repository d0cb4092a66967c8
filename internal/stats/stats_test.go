package stats_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"squeeze/internal/stats"
)

func TestRecordOutcomeCountsAndTotals(t *testing.T) {
	acc := stats.NewAccumulator()
	acc.RecordOutcome(stats.OutcomeCompressed, 100, 40)
	acc.RecordOutcome(stats.OutcomeMoved, 50, 50)
	acc.RecordOutcome(stats.OutcomeFailed, 999, 999)

	snap := acc.Snapshot()
	if snap.Processed != 3 {
		t.Fatalf("expected 3 processed, got %d", snap.Processed)
	}
	if snap.Processed != snap.Moved+snap.Compressed+snap.Failed {
		t.Fatalf("sum invariant violated: %+v", snap)
	}
	if snap.OriginalBytes != 150 || snap.FinalBytes != 90 {
		t.Fatalf("failed outcome must not contribute bytes: %+v", snap)
	}
	if snap.SpaceSaved() != 60 {
		t.Fatalf("expected 60 bytes saved, got %d", snap.SpaceSaved())
	}
	ratio, ok := snap.CompressionRatio()
	if !ok || ratio != 60 {
		t.Fatalf("expected ratio 60%%, got %v ok=%v", ratio, ok)
	}
}

func TestCompressionRatioUndefinedWithoutBytes(t *testing.T) {
	acc := stats.NewAccumulator()
	acc.RecordOutcome(stats.OutcomeFailed, 10, 0)
	if _, ok := acc.Snapshot().CompressionRatio(); ok {
		t.Fatal("ratio must be undefined when no bytes were processed")
	}
}

func TestRenderIncludesDerivedMetrics(t *testing.T) {
	acc := stats.NewAccumulator()
	acc.RecordOutcome(stats.OutcomeCompressed, 100_000_000, 40_000_000)

	report := acc.Render(90*time.Second, false)
	for _, fragment := range []string{"Run complete", "Compressed", "60 MB", "40.00%", "1m 30s"} {
		if !strings.Contains(report, fragment) {
			t.Fatalf("expected %q in report:\n%s", fragment, report)
		}
	}
}

func TestRenderOmitsRatioWhenEmpty(t *testing.T) {
	acc := stats.NewAccumulator()
	report := acc.Render(time.Second, true)
	if !strings.Contains(report, "Run cancelled") {
		t.Fatalf("expected cancelled marker in report:\n%s", report)
	}
	if strings.Contains(report, "Ratio") {
		t.Fatalf("ratio must be omitted for an empty run:\n%s", report)
	}
}

func TestSnapshotSafeUnderConcurrentReads(t *testing.T) {
	acc := stats.NewAccumulator()
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = acc.Snapshot()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		acc.RecordOutcome(stats.OutcomeMoved, 1, 1)
	}
	close(done)
	wg.Wait()

	if got := acc.Snapshot().Processed; got != 1000 {
		t.Fatalf("expected 1000 processed, got %d", got)
	}
}
