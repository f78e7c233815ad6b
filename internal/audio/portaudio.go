package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource opens streams on the system default input device.
type PortAudioSource struct {
	once sync.Once
	err  error
}

// NewPortAudioSource initializes PortAudio. Close must be called to terminate it.
func NewPortAudioSource() (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &PortAudioSource{}, nil
}

// DefaultInputDevice returns the default input device reported by PortAudio.
func (s *PortAudioSource) DefaultInputDevice() (Device, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, errors.Join(ErrNoAudioDevice, err)
	}
	if info == nil {
		return Device{}, ErrNoAudioDevice
	}
	return Device{ID: strconv.Itoa(info.Index), Name: info.Name}, nil
}

// Devices lists PortAudio devices with at least one input channel.
func (s *PortAudioSource) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	var devices []Device
	for _, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{ID: strconv.Itoa(info.Index), Name: info.Name})
	}
	return devices, nil
}

// OpenInputStream opens and starts a blocking int16 stream on the default input device.
func (s *PortAudioSource) OpenInputStream(cfg StreamConfig) (Stream, error) {
	buf := make([]int16, cfg.FrameSize*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FrameSize, buf)
	if err != nil {
		return nil, errors.Join(ErrNoAudioDevice, fmt.Errorf("open input stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Warn("failed to close input stream", "error", closeErr)
		}
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return &portAudioStream{stream: stream, buf: buf}, nil
}

// Close terminates PortAudio. It is safe to call more than once.
func (s *PortAudioSource) Close() error {
	s.once.Do(func() {
		if err := portaudio.Terminate(); err != nil {
			s.err = fmt.Errorf("terminate portaudio: %w", err)
		}
	})
	return s.err
}

type portAudioStream struct {
	stream    *portaudio.Stream
	buf       []int16
	overflows atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (p *portAudioStream) ReadFrame() ([]int16, error) {
	if p.closed.Load() {
		return nil, ErrStreamClosed
	}
	if err := p.stream.Read(); err != nil {
		// The buffer still holds the best-effort samples after an overflow.
		if errors.Is(err, portaudio.InputOverflowed) {
			p.overflows.Add(1)
			return p.buf, nil
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return p.buf, nil
}

func (p *portAudioStream) Overflows() uint64 {
	return p.overflows.Load()
}

func (p *portAudioStream) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		var errs []error
		if err := p.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := p.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
