// Package metrics exports gallery and feed counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/e7canasta/orion-gallery/internal/media"
)

const namespace = "gallery"

// Recorder receives gallery lifecycle events. Implementations must be cheap;
// they are called inline from gallery operations.
type Recorder interface {
	ObserveAttach(ok bool)
	ObserveDetach()
	ObservePermute(strategy string, tiles int)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveAttach(bool) {}

func (Nop) ObserveDetach() {}

func (Nop) ObservePermute(string, int) {}

// Prom is a Recorder backed by Prometheus collectors.
type Prom struct {
	attach  *prometheus.CounterVec
	detach  prometheus.Counter
	permute *prometheus.CounterVec
	tiles   prometheus.Gauge
}

var _ Recorder = (*Prom)(nil)

// NewProm creates the gallery collectors and registers them on reg.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	p := &Prom{
		attach: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attach_total",
			Help:      "Renderer attach attempts by result.",
		}, []string{"result"}),
		detach: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detach_total",
			Help:      "Views cleaned up (renderer detached and destroyed).",
		}),
		permute: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permute_total",
			Help:      "Grid re-layouts by strategy.",
		}, []string{"strategy"}),
		tiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tiles",
			Help:      "Tiles currently placed in the grid.",
		}),
	}

	for _, c := range []prometheus.Collector{p.attach, p.detach, p.permute, p.tiles} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prom) ObserveAttach(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.attach.WithLabelValues(result).Inc()
}

func (p *Prom) ObserveDetach() {
	p.detach.Inc()
}

func (p *Prom) ObservePermute(strategy string, tiles int) {
	p.permute.WithLabelValues(strategy).Inc()
	p.tiles.Set(float64(tiles))
}

// StatsSource is anything that reports track counters (media.FrameTrack).
type StatsSource interface {
	Stats() media.TrackStats
}

var (
	feedLabels = []string{"feed"}

	publishedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "feed", "frames_published_total"),
		"Frames published into the feed track.", feedLabels, nil)
	deliveredDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "feed", "frames_delivered_total"),
		"Frames delivered to attached sinks.", feedLabels, nil)
	throttledDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "feed", "frames_throttled_total"),
		"Frames skipped by a sink's max framerate.", feedLabels, nil)
	filteredDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "feed", "frames_filtered_total"),
		"Frames skipped by a sink's max pixel count.", feedLabels, nil)
	sinksDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "feed", "sinks"),
		"Sinks attached to the feed track.", feedLabels, nil)
)

// TrackCollector reads track stats at scrape time.
type TrackCollector struct {
	mu     sync.RWMutex
	tracks map[string]StatsSource
}

var _ prometheus.Collector = (*TrackCollector)(nil)

func NewTrackCollector() *TrackCollector {
	return &TrackCollector{tracks: make(map[string]StatsSource)}
}

// Add starts exporting src under feed id. Replaces any previous source.
func (c *TrackCollector) Add(id string, src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks[id] = src
}

// Remove stops exporting feed id.
func (c *TrackCollector) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracks, id)
}

func (c *TrackCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- publishedDesc
	ch <- deliveredDesc
	ch <- throttledDesc
	ch <- filteredDesc
	ch <- sinksDesc
}

func (c *TrackCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, src := range c.tracks {
		s := src.Stats()
		ch <- prometheus.MustNewConstMetric(publishedDesc, prometheus.CounterValue, float64(s.Published), id)
		ch <- prometheus.MustNewConstMetric(deliveredDesc, prometheus.CounterValue, float64(s.Delivered), id)
		ch <- prometheus.MustNewConstMetric(throttledDesc, prometheus.CounterValue, float64(s.Throttled), id)
		ch <- prometheus.MustNewConstMetric(filteredDesc, prometheus.CounterValue, float64(s.Filtered), id)
		ch <- prometheus.MustNewConstMetric(sinksDesc, prometheus.GaugeValue, float64(s.Sinks), id)
	}
}
