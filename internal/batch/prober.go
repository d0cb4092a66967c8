package batch

import (
	"context"

	"squeeze/internal/media/ffprobe"
)

// FFprobeProber inspects codecs by shelling out to ffprobe.
type FFprobeProber struct {
	binary string
}

// NewFFprobeProber constructs a prober using the given ffprobe binary.
func NewFFprobeProber(binary string) *FFprobeProber {
	return &FFprobeProber{binary: binary}
}

// Probe runs ffprobe and extracts the first video stream's codec plus the
// container duration (used for transcode progress percentages).
func (p *FFprobeProber) Probe(ctx context.Context, path string) (ProbeResult, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{
		Codec:           result.VideoCodec(),
		DurationSeconds: result.DurationSeconds(),
	}, nil
}

var _ Prober = (*FFprobeProber)(nil)
