//go:build windows

package audio

import "strconv"

// buildFFmpegCaptureArgs constructs FFmpeg arguments for raw S16LE capture on Windows.
// -nostdin is left out so FFmpeg still honours the 'q' quit command.
func buildFFmpegCaptureArgs(inputFormat, device string, sc StreamConfig) []string {
	return []string{
		"-f", inputFormat,
		"-i", device,
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", strconv.Itoa(sc.Channels),
		"-ar", strconv.Itoa(sc.SampleRate),
		"pipe:1",
	}
}
