// Package metrics exposes sampled sound levels as Prometheus gauges.
//
// Metrics owns its registry; nothing is registered with the global default
// registry. The level gauges are emitted from one snapshot guarded by a
// mutex, so a scrape sees the rms and level values of the same closed window.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oszuidwest/zwfm-soundlevel/internal/sampler"
)

// Namespace prefixes every metric name.
const Namespace = "sound_level"

// DeviceLabel is the label carrying the input device name.
const DeviceLabel = "device_name"

// OverflowCounter reports how many input overflows a stream tolerated.
type OverflowCounter interface {
	Overflows() uint64
}

// Metrics is the process metrics registry and the sampler's publishing sink.
type Metrics struct {
	registry *prometheus.Registry
	levels   *levelCollector

	windowsTotal   prometheus.Counter
	framesTotal    prometheus.Counter
	windowDuration prometheus.Gauge
}

// New creates a registry with the level gauges labelled with device,
// loop counters and the Go and process collectors.
func New(device string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		levels:   newLevelCollector(device),
		windowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "windows_total",
			Help:      "Total number of closed sampling windows",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_total",
			Help:      "Total number of audio frames reduced",
		}),
		windowDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "window_duration_seconds",
			Help:      "Actual duration of the last closed sampling window",
		}),
	}

	m.registry.MustRegister(
		m.levels,
		m.windowsTotal,
		m.framesTotal,
		m.windowDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// TrackOverflows exports the overflow count of an input stream.
func (m *Metrics) TrackOverflows(c OverflowCounter) error {
	return m.registry.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "input_overflows_total",
			Help:      "Total number of tolerated audio input overflows",
		},
		func() float64 { return float64(c.Overflows()) },
	))
}

// Publish replaces the level gauges with the maxima of a closed window.
func (m *Metrics) Publish(s sampler.Summary) {
	m.levels.set(s.RMS, s.DB, s.Clipped)
	m.windowsTotal.Inc()
	m.framesTotal.Add(float64(s.Frames))
	m.windowDuration.Set(s.Duration.Seconds())
}

// Registry returns the owned registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// levelCollector emits the rms, level and clipped gauges from a single snapshot.
type levelCollector struct {
	device string

	rmsDesc     *prometheus.Desc
	levelDesc   *prometheus.Desc
	clippedDesc *prometheus.Desc

	mu        sync.RWMutex
	published bool
	rms       float64
	level     float64
	clipped   float64
}

func newLevelCollector(device string) *levelCollector {
	labels := []string{DeviceLabel}
	return &levelCollector{
		device: device,
		rmsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "rms"),
			"Sound level RMS amplitude, maximum over the last sampling window",
			labels, nil,
		),
		levelDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "level"),
			"Sound level in dB (uncalibrated), maximum over the last sampling window",
			labels, nil,
		),
		clippedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "clipped_samples"),
			"Number of clipped samples in the last sampling window",
			labels, nil,
		),
	}
}

func (c *levelCollector) set(rms, level float64, clipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = true
	c.rms = rms
	c.level = level
	c.clipped = float64(clipped)
}

// Describe implements prometheus.Collector.
func (c *levelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rmsDesc
	ch <- c.levelDesc
	ch <- c.clippedDesc
}

// Collect implements prometheus.Collector. Nothing is emitted until the first window closes.
func (c *levelCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	published, rms, level, clipped := c.published, c.rms, c.level, c.clipped
	c.mu.RUnlock()

	if !published {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.rmsDesc, prometheus.GaugeValue, rms, c.device)
	ch <- prometheus.MustNewConstMetric(c.levelDesc, prometheus.GaugeValue, level, c.device)
	ch <- prometheus.MustNewConstMetric(c.clippedDesc, prometheus.GaugeValue, clipped, c.device)
}
