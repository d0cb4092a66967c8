package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsage covers bad arguments or a missing source directory; it aborts
	// the run before any file is processed.
	ErrUsage = errors.New("usage error")
	// ErrExternalTool marks failures of the ffmpeg/ffprobe subprocesses.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks unusable configuration values.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks filesystem failures (copy, rename, mkdir) that are
	// contained to a single file.
	ErrTransient = errors.New("transient failure")
	// ErrInterrupted is returned by a cancelled run; main maps it to the
	// conventional interrupt exit status.
	ErrInterrupted = errors.New("interrupted")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
