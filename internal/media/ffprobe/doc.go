// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The primary entry point is Inspect, which executes ffprobe and returns a
// parsed Result. Helper methods answer the question the batch pipeline cares
// about: which codec the first video stream uses.
package ffprobe
