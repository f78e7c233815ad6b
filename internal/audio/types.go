package audio

import (
	"errors"
	"fmt"
	"time"
)

// Input format of every stream: 16-bit signed mono at 44.1 kHz, read in 1024-sample frames.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 44100
	// Channels is the number of audio channels (mono).
	Channels = 1
	// FrameSize is the number of samples returned by each ReadFrame call.
	FrameSize = 1024
	// BytesPerSample is the width of one S16LE sample.
	BytesPerSample = 2
)

// Sentinel errors for audio input.
var (
	// ErrNoAudioDevice is returned when no audio input device is available.
	ErrNoAudioDevice = errors.New("no audio input device found")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown audio backend")
	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("audio stream closed")
)

// Backend selects how audio is acquired.
type Backend string

const (
	// BackendPortAudio reads from the default input device through PortAudio.
	BackendPortAudio Backend = "portaudio"
	// BackendCapture reads raw PCM from an arecord or FFmpeg child process.
	BackendCapture Backend = "capture"
)

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// StreamConfig describes the PCM layout requested from an input stream.
type StreamConfig struct {
	SampleRate int
	Channels   int
	FrameSize  int
}

// DefaultStreamConfig returns the fixed mono 44.1 kHz, 1024-sample layout.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate: SampleRate,
		Channels:   Channels,
		FrameSize:  FrameSize,
	}
}

// FrameDuration is the wall-clock length of one frame.
func (c StreamConfig) FrameDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// Stream is an open audio input stream.
type Stream interface {
	// ReadFrame blocks until one full frame is available. The returned slice
	// is only valid until the next call. Input overflows are not errors.
	ReadFrame() ([]int16, error)
	// Overflows reports how many input overflow conditions were tolerated.
	Overflows() uint64
	// Close stops the stream and releases the device.
	Close() error
}

// Source is an audio subsystem that can open input streams.
type Source interface {
	// DefaultInputDevice returns the device streams are opened on.
	DefaultInputDevice() (Device, error)
	// Devices lists available input devices.
	Devices() ([]Device, error)
	// OpenInputStream opens and starts an input stream on the default device.
	OpenInputStream(cfg StreamConfig) (Stream, error)
	// Close releases the audio subsystem.
	Close() error
}

// NewSource initializes the audio subsystem for the given backend.
// device and ffmpegPath only apply to the capture backend.
func NewSource(backend Backend, device, ffmpegPath string) (Source, error) {
	switch backend {
	case BackendPortAudio, "":
		src, err := NewPortAudioSource()
		if err != nil {
			return nil, err
		}
		return src, nil
	case BackendCapture:
		return NewCaptureSource(device, ffmpegPath), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
