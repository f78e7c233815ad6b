//go:build windows

package audio

import (
	"regexp"
	"strings"
)

func platformConfig() CaptureConfig {
	return CaptureConfig{
		Command:       "ffmpeg",
		DefaultDevice: "", // no safe default on Windows, first listed device is used
		UsesFFmpeg:    true,
		BuildArgs:     buildWindowsArgs,
	}
}

func buildWindowsArgs(device string, sc StreamConfig) []string {
	return buildFFmpegCaptureArgs("dshow", device, sc)
}

func (cfg *CaptureConfig) Devices() []Device {
	return listDevices(DeviceListConfig{
		Command: []string{cfg.Command, "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		// FFmpeg versions differ on the section header, so match lines ending in "(audio)".
		DevicePattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"\s*\(audio\)`),
		ParseDevice: func(matches []string) *Device {
			if len(matches) < 2 {
				return nil
			}
			name := strings.TrimSpace(matches[1])
			return &Device{
				ID:   "audio=" + name,
				Name: name,
			}
		},
	})
}
