// Package sampler turns a stream of audio frames into windowed level maxima.
//
// Each window pulls frames until the sampling interval has elapsed, keeps the
// loudest frame's RMS and decibel level, and publishes them when it closes.
// Frame reads are never interrupted, so a window runs at least the interval
// and at most one frame duration longer.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oszuidwest/zwfm-soundlevel/internal/audio"
)

// Publisher receives the summary of every closed window.
// Publish is called from the sampling loop and must not block.
type Publisher interface {
	Publish(Summary)
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(Summary)

// Publish calls f(s).
func (f PublisherFunc) Publish(s Summary) {
	f(s)
}

// FrameReader is the part of an audio stream the sampler needs.
type FrameReader interface {
	ReadFrame() ([]int16, error)
}

// Sampler runs sampling windows back to back over a single stream.
type Sampler struct {
	frames     FrameReader
	interval   time.Duration
	publishers []Publisher
	now        func() time.Time
	window     Window
}

// New returns a Sampler that publishes to publishers after every interval.
func New(frames FrameReader, interval time.Duration, publishers ...Publisher) *Sampler {
	return &Sampler{
		frames:     frames,
		interval:   interval,
		publishers: publishers,
		now:        time.Now,
	}
}

// Run samples windows until ctx is cancelled or a read fails.
// Cancellation is observed after a frame read or a window close and returns nil;
// the window in progress is discarded rather than published.
func (s *Sampler) Run(ctx context.Context) error {
	for {
		summary, err := s.RunWindow(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		slog.Debug("sampling window closed",
			"rms", summary.RMS, "level", summary.DB,
			"frames", summary.Frames, "duration", summary.Duration)

		for _, p := range s.publishers {
			p.Publish(summary)
		}
	}
}

// RunWindow opens one window, reduces frames until the interval has elapsed
// and returns the window summary without publishing it.
func (s *Sampler) RunWindow(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	s.window.Reset(s.now())

	for s.window.Elapsed(s.now()) < s.interval {
		frame, err := s.frames.ReadFrame()
		if err != nil {
			// A shutdown signal may end the input before the loop observes it.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Summary{}, ctxErr
			}
			return Summary{}, fmt.Errorf("sample window: %w", err)
		}
		s.window.Observe(audio.Reduce(frame))

		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
	}

	return s.window.Summary(s.now()), nil
}
