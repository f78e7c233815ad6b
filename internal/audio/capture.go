package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-soundlevel/internal/util"
)

// captureShutdownTimeout bounds how long Close waits for the capture process after signalling it.
const captureShutdownTimeout = 3000 * time.Millisecond

// CaptureConfig defines platform-specific audio capture configuration.
type CaptureConfig struct {
	// Command is the executable name (e.g., "arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// UsesFFmpeg indicates if this platform uses FFmpeg for capture.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments for capturing raw S16LE PCM
	// from device in the given stream layout.
	BuildArgs func(device string, sc StreamConfig) []string
}

// BuildCaptureCommand returns the command and arguments for audio capture.
// If device is empty, it attempts to use the default or auto-detect.
// The ffmpegPath parameter is used on platforms that use FFmpeg for capture.
func BuildCaptureCommand(device, ffmpegPath string, sc StreamConfig) (cmd string, args []string, err error) {
	cfg := withFFmpegPath(platformConfig(), ffmpegPath)

	device, err = resolveCaptureDevice(device, cfg)
	if err != nil {
		return "", nil, err
	}

	return cfg.Command, cfg.BuildArgs(device, sc), nil
}

// withFFmpegPath points FFmpeg-based platforms at a resolved binary, for capture and device listing alike.
//
//nolint:gocritic // hugeParam: config is built once per call
func withFFmpegPath(cfg CaptureConfig, ffmpegPath string) CaptureConfig {
	if cfg.UsesFFmpeg && ffmpegPath != "" {
		cfg.Command = ffmpegPath
	}
	return cfg
}

// resolveCaptureDevice falls back to the platform default, then to the first listed device.
func resolveCaptureDevice(device string, cfg CaptureConfig) (string, error) {
	if device == "" {
		device = cfg.DefaultDevice
	}
	if device == "" {
		devices := cfg.Devices()
		if len(devices) == 0 {
			return "", ErrNoAudioDevice
		}
		device = devices[0].ID
	}
	return device, nil
}

// CaptureSource reads PCM from an arecord or FFmpeg child process.
type CaptureSource struct {
	device     string
	ffmpegPath string
}

// NewCaptureSource returns a capture source for device. An empty device selects
// the platform default.
func NewCaptureSource(device, ffmpegPath string) *CaptureSource {
	return &CaptureSource{device: device, ffmpegPath: ffmpegPath}
}

// DefaultInputDevice returns the configured or auto-detected capture device.
func (s *CaptureSource) DefaultInputDevice() (Device, error) {
	cfg := withFFmpegPath(platformConfig(), s.ffmpegPath)
	id, err := resolveCaptureDevice(s.device, cfg)
	if err != nil {
		return Device{}, err
	}
	for _, d := range cfg.Devices() {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{ID: id, Name: id}, nil
}

// Devices lists capture devices for the current platform.
func (s *CaptureSource) Devices() ([]Device, error) {
	cfg := withFFmpegPath(platformConfig(), s.ffmpegPath)
	return cfg.Devices(), nil
}

// OpenInputStream starts the capture process and returns a stream over its stdout.
func (s *CaptureSource) OpenInputStream(sc StreamConfig) (Stream, error) {
	cmdName, args, err := BuildCaptureCommand(s.device, s.ffmpegPath, sc)
	if err != nil {
		return nil, err
	}

	slog.Info("starting audio capture", "command", cmdName, "input", s.device)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cmdName, args...)

	// Declarative graceful shutdown: signal first, wait, then kill.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = captureShutdownTimeout
	// Terminal and service-manager signals go to the process group; the child is stopped by Close only.
	detachProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, util.WrapError("create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, util.WrapError("create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Join(ErrNoAudioDevice, util.WrapError("start capture", err))
	}

	cs := &captureStream{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		buf:    make([]byte, sc.FrameSize*sc.Channels*BytesPerSample),
		done:   make(chan struct{}),
	}
	go cs.watchStderr(stderr)
	return cs, nil
}

// Close is a no-op; each capture stream owns its process.
func (s *CaptureSource) Close() error {
	return nil
}

type captureStream struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stdout    io.ReadCloser
	buf       []byte
	samples   []int16
	overflows atomic.Uint64
	closed    atomic.Bool

	mu      sync.Mutex
	lastErr string
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// watchStderr counts overrun reports and remembers the last diagnostic line.
func (c *captureStream) watchStderr(r io.Reader) {
	defer close(c.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), "overrun") {
			c.overflows.Add(1)
			continue
		}
		if msg := util.LastErrorLine(line); msg != "" {
			c.mu.Lock()
			c.lastErr = msg
			c.mu.Unlock()
			slog.Debug("capture stderr", "line", msg)
		}
	}
}

func (c *captureStream) ReadFrame() ([]int16, error) {
	if c.closed.Load() {
		return nil, ErrStreamClosed
	}
	if _, err := io.ReadFull(c.stdout, c.buf); err != nil {
		if c.closed.Load() {
			return nil, ErrStreamClosed
		}
		c.mu.Lock()
		detail := c.lastErr
		c.mu.Unlock()
		if detail != "" {
			return nil, fmt.Errorf("read frame: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	c.samples = DecodeS16LE(c.samples, c.buf)
	return c.samples, nil
}

func (c *captureStream) Overflows() uint64 {
	return c.overflows.Load()
}

func (c *captureStream) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		err := c.cmd.Wait()
		<-c.done

		// The process exits non-zero after being signalled; that is the expected path.
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			c.closeErr = util.WrapError("stop capture", err)
		}
	})
	return c.closeErr
}
