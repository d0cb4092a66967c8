// Package staging names temporary write targets and sweeps them back out of
// the destination tree.
//
// Every copy or transcode writes to "<final path> + Suffix" and is promoted
// by an atomic rename. A staging file found after a crash or cancellation is
// garbage by definition: it was never published, so removing it has no side
// effects. The sweep is safe to run concurrently with a rename in progress
// because a completed rename no longer matches the suffix.
package staging

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"squeeze/internal/logging"
)

// Suffix marks in-flight write targets.
const Suffix = ".part"

// Path returns the staging path for a final destination path.
func Path(finalPath string) string {
	return finalPath + Suffix
}

// IsStagingPath reports whether the path carries the staging suffix.
func IsStagingPath(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// SweepResult contains the outcome of a staging sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes every staging file under root, regardless of which pipeline
// step produced it. Running it twice in a row is a no-op the second time.
func Sweep(root string, logger *slog.Logger) SweepResult {
	result := SweepResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			}
			return nil
		}
		if entry.IsDir() || !IsStagingPath(entry.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove staging file",
					logging.String("path", path),
					logging.Error(err),
				)
			}
			return nil
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed staging file", logging.String("path", path))
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		result.Errors = append(result.Errors, SweepError{Path: root, Error: walkErr})
	}

	return result
}
