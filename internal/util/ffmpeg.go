package util

import (
	"fmt"
	"os/exec"
)

// ResolveFFmpegPath returns the path to the FFmpeg binary. A non-empty
// customPath must resolve to an executable; otherwise "ffmpeg" is looked up
// in PATH.
func ResolveFFmpegPath(customPath string) (string, error) {
	name := customPath
	if name == "" {
		name = "ffmpeg"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found at %q: %w", name, err)
	}
	return path, nil
}
