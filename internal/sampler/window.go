package sampler

import (
	"math"
	"time"

	"github.com/oszuidwest/zwfm-soundlevel/internal/audio"
)

// Summary is the published result of one closed sampling window.
type Summary struct {
	// RMS is the largest frame RMS seen in the window.
	RMS float64
	// DB is the largest frame decibel level seen in the window.
	DB float64
	// Clipped is the number of clipped samples across the window.
	Clipped int
	// Frames is the number of frames reduced in the window.
	Frames int
	// Start is when the window opened.
	Start time.Time
	// Duration is how long the window stayed open, including the overshoot of the last frame.
	Duration time.Duration
}

// Window accumulates per-frame levels over one sampling window.
// It holds running maxima only, so memory does not grow with window length.
// Window is not safe for concurrent use; the sampling loop owns it.
type Window struct {
	start   time.Time
	maxRMS  float64
	maxDB   float64
	clipped int
	frames  int
}

// Reset opens a new window at now, discarding all previous maxima.
func (w *Window) Reset(now time.Time) {
	*w = Window{start: now}
}

// Observe folds a frame level into the running maxima. Negative and
// non-finite values never lower or poison the maxima.
func (w *Window) Observe(l audio.Level) {
	w.frames++
	w.clipped += l.Clipped
	if finite(l.RMS) && l.RMS > w.maxRMS {
		w.maxRMS = l.RMS
	}
	if finite(l.DB) && l.DB > w.maxDB {
		w.maxDB = l.DB
	}
}

// Elapsed reports how long the window has been open at now.
// It uses the monotonic clock reading when both times carry one.
func (w *Window) Elapsed(now time.Time) time.Duration {
	return now.Sub(w.start)
}

// Summary returns the window maxima as of now.
func (w *Window) Summary(now time.Time) Summary {
	return Summary{
		RMS:      w.maxRMS,
		DB:       w.maxDB,
		Clipped:  w.clipped,
		Frames:   w.frames,
		Start:    w.start,
		Duration: w.Elapsed(now),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
