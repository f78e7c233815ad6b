//go:build !windows

package audio

import "strconv"

// buildFFmpegCaptureArgs constructs FFmpeg arguments for raw S16LE capture to stdout.
func buildFFmpegCaptureArgs(inputFormat, device string, sc StreamConfig) []string {
	return []string{
		"-f", inputFormat,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", strconv.Itoa(sc.Channels),
		"-ar", strconv.Itoa(sc.SampleRate),
		"pipe:1",
	}
}
