// Package audio provides audio input streams and per-frame level reduction.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MaxSampleValue is the largest positive value of a 16-bit signed sample.
	MaxSampleValue = 32767
	// ClipThreshold is slightly below max to catch near-clips.
	ClipThreshold = 32760
)

// Sample is a PCM sample type accepted by Reduce.
type Sample interface {
	~int16 | ~int32 | ~float32 | ~float64
}

// Level is the reduction of one frame: its RMS amplitude and decibel level.
//
// DB is 20*log10(RMS) relative to a sample value of 1, so full-scale 16-bit
// audio reads about 90.3. It is an uncalibrated loudness proxy, not a sound
// pressure level.
type Level struct {
	RMS     float64
	DB      float64
	Clipped int
}

// DecodeS16LE decodes little-endian signed 16-bit PCM into dst and returns it.
// dst is grown when it is too small; a trailing odd byte is ignored.
func DecodeS16LE(dst []int16, buf []byte) []int16 {
	n := len(buf) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return dst
}

// Reduce computes the RMS amplitude and decibel level of a frame.
// An empty frame reduces to zero. Non-finite squares are replaced with zero,
// so the result is always finite and non-negative.
func Reduce[S Sample](frame []S) Level {
	if len(frame) == 0 {
		return Level{}
	}

	var sumSquares float64
	clipped := 0
	for _, s := range frame {
		v := float64(s)
		sq := v * v
		if math.IsNaN(sq) || math.IsInf(sq, 0) {
			continue
		}
		sumSquares += sq
		if math.Abs(v) >= ClipThreshold {
			clipped++
		}
	}

	rms := math.Sqrt(sumSquares / float64(len(frame)))
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		rms = 0
	}

	return Level{
		RMS:     rms,
		DB:      Decibels(rms),
		Clipped: clipped,
	}
}

// Decibels converts an RMS amplitude to 20*log10(rms), or 0 when rms <= 0.
func Decibels(rms float64) float64 {
	if !(rms > 0) || math.IsInf(rms, 0) {
		return 0
	}
	return 20 * math.Log10(rms)
}
