package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCaptureStream(pcm []byte, frameSize int) *captureStream {
	return &captureStream{
		stdout: io.NopCloser(bytes.NewReader(pcm)),
		buf:    make([]byte, frameSize*BytesPerSample),
		done:   make(chan struct{}),
	}
}

func TestCaptureStreamReadFrame(t *testing.T) {
	samples := []int16{1, -2, 3, -4, 5, -6}
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	cs := newTestCaptureStream(pcm, 3)

	frame, err := cs.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -2, 3}, frame)

	frame, err = cs.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []int16{-4, 5, -6}, frame)

	_, err = cs.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCaptureStreamShortFrameIsAnError(t *testing.T) {
	cs := newTestCaptureStream([]byte{1, 0, 2}, 2)
	cs.lastErr = "arecord: main:850: audio open error: No such file or directory"

	_, err := cs.ReadFrame()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "audio open error")
}

func TestCaptureStreamClosedRead(t *testing.T) {
	cs := newTestCaptureStream(make([]byte, 8), 2)
	cs.closed.Store(true)

	_, err := cs.ReadFrame()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestCaptureStreamCountsOverruns(t *testing.T) {
	cs := newTestCaptureStream(nil, 1)
	stderr := strings.Join([]string{
		"overrun!!! (at least 1.234 ms long)",
		"",
		"overrun!!! (at least 0.500 ms long)",
		"[alsa @ 0x1] ALSA buffer xrun.",
		"Overrun detected",
	}, "\n")

	cs.watchStderr(strings.NewReader(stderr))

	assert.Equal(t, uint64(3), cs.Overflows())
	assert.Equal(t, "[alsa @ 0x1] ALSA buffer xrun.", cs.lastErr)
	select {
	case <-cs.done:
	default:
		t.Fatal("watchStderr did not signal completion")
	}
}

func TestNewSourceUnknownBackend(t *testing.T) {
	_, err := NewSource("jack", "", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	src, err := NewSource(BackendCapture, "hw:0", "")
	require.NoError(t, err)
	assert.NoError(t, src.Close())
}

func TestWithFFmpegPath(t *testing.T) {
	ffmpegCfg := CaptureConfig{Command: "ffmpeg", UsesFFmpeg: true}
	assert.Equal(t, `C:\tools\ffmpeg\bin\ffmpeg.exe`, withFFmpegPath(ffmpegCfg, `C:\tools\ffmpeg\bin\ffmpeg.exe`).Command)
	assert.Equal(t, "ffmpeg", withFFmpegPath(ffmpegCfg, "").Command)

	arecordCfg := CaptureConfig{Command: "arecord"}
	assert.Equal(t, "arecord", withFFmpegPath(arecordCfg, "/usr/bin/ffmpeg").Command)
}
