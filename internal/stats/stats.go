// Package stats accumulates per-run statistics and renders the final
// summary. The accumulator is owned by the orchestrator; the cancellation
// path only ever reads snapshots, so a mutex keeps Snapshot safe to call
// concurrently with in-flight recording.
package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Outcome classifies a processed file.
type Outcome string

const (
	OutcomeMoved      Outcome = "moved"
	OutcomeCompressed Outcome = "compressed"
	OutcomeFailed     Outcome = "failed"
)

// RunStatistics is a point-in-time copy of the accumulated counters.
type RunStatistics struct {
	Processed  int
	Moved      int
	Compressed int
	Failed     int

	// Byte totals cover successfully processed files only.
	OriginalBytes int64
	FinalBytes    int64
}

// SpaceSaved returns the byte delta between original and final totals.
func (s RunStatistics) SpaceSaved() int64 {
	return s.OriginalBytes - s.FinalBytes
}

// CompressionRatio returns final/original as a percentage. The boolean is
// false when no bytes were processed and the ratio is undefined.
func (s RunStatistics) CompressionRatio() (float64, bool) {
	if s.OriginalBytes <= 0 {
		return 0, false
	}
	return float64(s.FinalBytes) / float64(s.OriginalBytes) * 100, true
}

// Accumulator collects run counters. Counters only ever increase.
type Accumulator struct {
	mu      sync.Mutex
	current RunStatistics
	started time.Time
}

// NewAccumulator creates an accumulator anchored at the current time.
func NewAccumulator() *Accumulator {
	return &Accumulator{started: time.Now()}
}

// StartedAt returns the accumulator's creation timestamp.
func (a *Accumulator) StartedAt() time.Time {
	return a.started
}

// RecordOutcome registers one processed file. Byte sizes contribute to the
// totals only for successful outcomes.
func (a *Accumulator) RecordOutcome(kind Outcome, originalSize, finalSize int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current.Processed++
	switch kind {
	case OutcomeMoved:
		a.current.Moved++
	case OutcomeCompressed:
		a.current.Compressed++
	case OutcomeFailed:
		a.current.Failed++
		return
	}
	a.current.OriginalBytes += originalSize
	a.current.FinalBytes += finalSize
}

// Snapshot returns a read-only copy of the counters. Safe to call from the
// cancellation path while the main loop is still recording.
func (a *Accumulator) Snapshot() RunStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Render produces the human-readable end-of-run report.
func (a *Accumulator) Render(elapsed time.Duration, cancelled bool) string {
	snap := a.Snapshot()

	header := "Run complete"
	if cancelled {
		header = "Run cancelled"
	}

	rows := [][2]string{
		{"Processed", fmt.Sprintf("%d", snap.Processed)},
		{"Compressed", fmt.Sprintf("%d", snap.Compressed)},
		{"Moved", fmt.Sprintf("%d", snap.Moved)},
		{"Failed", fmt.Sprintf("%d", snap.Failed)},
		{"Duration", formatDuration(elapsed)},
	}
	if ratio, ok := snap.CompressionRatio(); ok {
		rows = append(rows,
			[2]string{"Original size", humanize.Bytes(uint64(snap.OriginalBytes))},
			[2]string{"Final size", humanize.Bytes(uint64(snap.FinalBytes))},
			[2]string{"Space saved", humanize.Bytes(uint64(max64(snap.SpaceSaved(), 0)))},
			[2]string{"Ratio", fmt.Sprintf("%.2f%%", ratio)},
		)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(header)
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh ", h)
	}
	if h > 0 || m > 0 {
		fmt.Fprintf(&b, "%dm ", m)
	}
	fmt.Fprintf(&b, "%ds", s)
	return b.String()
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
