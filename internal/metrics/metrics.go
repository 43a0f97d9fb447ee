// package metrics exposes Prometheus collectors for conversions and downloads.
//
// A CLI run is short lived, so nothing is served over HTTP. The registry is written to a
// node_exporter textfile after each run instead.
package metrics

import (
	"fmt"
	"time"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "songvert"

// Collector records resolution, download and run metrics in its own registry.
type Collector struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	downloads   *prometheus.CounterVec
	runDuration prometheus.Gauge
	matchRatio  prometheus.Gauge
}

// New creates a collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Track resolutions by target service and outcome.",
		}, []string{"service", "outcome"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_score",
			Help:      "Similarity score of accepted matches.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.5, 8),
		}, []string{"service"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Track downloads by audio source and outcome.",
		}, []string{"source", "outcome"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent conversion.",
		}),
		matchRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_match_ratio",
			Help:      "Matched share of attempted lookups in the most recent conversion.",
		}),
	}
	c.registry.MustRegister(c.resolutions, c.scores, c.downloads, c.runDuration, c.matchRatio)
	return c
}

// ObserveResolution counts one resolution. Scores are recorded for matches only.
func (c *Collector) ObserveResolution(service models.Source, status string, score float64) {
	c.resolutions.WithLabelValues(service.String(), status).Inc()
	if status == models.StatusMatched {
		c.scores.WithLabelValues(service.String()).Observe(score)
	}
}

// ObserveDownload counts one download attempt.
func (c *Collector) ObserveDownload(source models.Source, outcome string) {
	c.downloads.WithLabelValues(source.String(), outcome).Inc()
}

// ObserveRun records the duration and match percentage of a finished conversion.
func (c *Collector) ObserveRun(duration time.Duration, matchPercentage float64) {
	c.runDuration.Set(duration.Seconds())
	c.matchRatio.Set(matchPercentage / 100)
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile atomically writes every metric in text exposition format to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
