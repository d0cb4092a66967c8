package batch

// Decision selects the action for a processed file.
type Decision int

const (
	// DecisionMove publishes the original bytes unchanged.
	DecisionMove Decision = iota
	// DecisionCompress publishes the transcoded output.
	DecisionCompress
	// DecisionFail records the file as failed and keeps the source.
	DecisionFail
)

func (d Decision) String() string {
	switch d {
	case DecisionMove:
		return "move"
	case DecisionCompress:
		return "compress"
	case DecisionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decide is the pure per-file outcome policy. It has no I/O so the branch
// table can be tested without invoking real encoders.
//
//   - A file already in the target codec is moved as-is.
//   - A failed transcode fails the file (the source is retained).
//   - A transcode that produced a smaller file is kept.
//   - A transcode that did not shrink the file falls back to moving the
//     original.
func Decide(alreadyTarget, transcodeAttempted, transcodeSucceeded bool, originalSize, producedSize int64) Decision {
	if alreadyTarget || !transcodeAttempted {
		return DecisionMove
	}
	if !transcodeSucceeded {
		return DecisionFail
	}
	if producedSize < originalSize {
		return DecisionCompress
	}
	return DecisionMove
}
