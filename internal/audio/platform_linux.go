//go:build linux

package audio

import (
	"regexp"
	"strconv"
)

func platformConfig() CaptureConfig {
	return CaptureConfig{
		Command:       "arecord",
		DefaultDevice: "default",
		BuildArgs:     buildLinuxArgs,
	}
}

// buildLinuxArgs keeps arecord running through overruns; they are reported on stderr.
func buildLinuxArgs(device string, sc StreamConfig) []string {
	return []string{
		"-D", device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(sc.SampleRate),
		"-c", strconv.Itoa(sc.Channels),
		"-t", "raw",
		"-",
	}
}

var arecordCardPattern = regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`)

func (cfg *CaptureConfig) Devices() []Device {
	return listDevices(linuxDeviceListConfig())
}

func linuxDeviceListConfig() DeviceListConfig {
	return DeviceListConfig{
		Command:       []string{"arecord", "-l"},
		DevicePattern: arecordCardPattern,
		ParseDevice: func(matches []string) *Device {
			if len(matches) < 4 {
				return nil
			}
			return &Device{
				ID:   "default:CARD=" + matches[2],
				Name: matches[3],
			}
		},
		FallbackDevices: []Device{
			{ID: "default", Name: "default"},
		},
	}
}
