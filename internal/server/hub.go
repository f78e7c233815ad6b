package server

import (
	"log/slog"
	"sync"

	"github.com/oszuidwest/zwfm-soundlevel/internal/sampler"
)

// subscriberBuffer is how many unsent window summaries a slow client may queue.
const subscriberBuffer = 4

// LevelsMessage is the WebSocket payload sent for every closed sampling window.
type LevelsMessage struct {
	Type        string  `json:"type"`
	DeviceName  string  `json:"device_name"`
	RMS         float64 `json:"rms"`
	Level       float64 `json:"level"`
	Clipped     int     `json:"clipped"`
	Frames      int     `json:"frames"`
	WindowStart int64   `json:"window_start"` // Unix milliseconds
	DurationMs  int64   `json:"duration_ms"`
}

// Hub fans closed-window summaries out to WebSocket subscribers.
// Publishing never blocks; messages for a full subscriber are dropped.
// It is safe for concurrent use.
type Hub struct {
	device string

	mu      sync.Mutex
	subs    map[chan LevelsMessage]struct{}
	last    LevelsMessage
	hasLast bool
}

// NewHub returns a hub labelling messages with device.
func NewHub(device string) *Hub {
	return &Hub{
		device: device,
		subs:   make(map[chan LevelsMessage]struct{}),
	}
}

// Publish implements sampler.Publisher.
func (h *Hub) Publish(s sampler.Summary) {
	msg := LevelsMessage{
		Type:        "levels",
		DeviceName:  h.device,
		RMS:         s.RMS,
		Level:       s.DB,
		Clipped:     s.Clipped,
		Frames:      s.Frames,
		WindowStart: s.Start.UnixMilli(),
		DurationMs:  s.Duration.Milliseconds(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	h.hasLast = true
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			slog.Debug("dropping levels message for slow websocket client")
		}
	}
}

// Subscribe registers a subscriber. The last published message, if any, is
// queued immediately. The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan LevelsMessage, func()) {
	ch := make(chan LevelsMessage, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.hasLast {
		ch <- h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recently published message.
func (h *Hub) Last() (LevelsMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// Subscribers reports the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
