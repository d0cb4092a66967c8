// Package ffmpeg wraps the ffmpeg command-line encoder so the batch pipeline
// can launch HEVC transcodes and observe typed progress updates.
//
// It exposes a Client interface and a CLI implementation that shells out with
// a fixed parameter set. Tests swap in fakes to avoid executing the real
// encoder while still exercising pipeline behaviour.
package ffmpeg
