// Package metrics exposes run metrics in the Prometheus text format.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// Registry holds all metrics of a run.
type Registry struct {
	registry *prometheus.Registry

	IndexValue      *prometheus.GaugeVec
	LedgerAppends   *prometheus.CounterVec
	PublishTotal    *prometheus.CounterVec
	RunDuration     prometheus.Gauge
	LastSuccessTime prometheus.Gauge
}

// NewRegistry creates a registry with every fgi metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		IndexValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fgi_index_value",
				Help: "Latest fear and greed index value by instrument",
			},
			[]string{"instrument"},
		),

		LedgerAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgi_ledger_appends_total",
				Help: "Number of history records appended by instrument",
			},
			[]string{"instrument"},
		),

		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgi_publish_total",
				Help: "Publish attempts by channel and result",
			},
			[]string{"channel", "result"},
		),

		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fgi_run_duration_seconds",
				Help: "Duration of the last pipeline run in seconds",
			},
		),

		LastSuccessTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fgi_last_success_timestamp_seconds",
				Help: "Unix time of the last successful pipeline run",
			},
		),
	}

	r.registry.MustRegister(r.IndexValue, r.LedgerAppends, r.PublishTotal, r.RunDuration, r.LastSuccessTime)
	return r
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveSnapshot records the live value of an instrument.
func (r *Registry) ObserveSnapshot(s domain.Snapshot) {
	r.IndexValue.WithLabelValues(s.Instrument.String()).Set(float64(s.Now))
}

// ObserveAppends counts ledger writes of an instrument.
func (r *Registry) ObserveAppends(instrument domain.Instrument, n int) {
	r.LedgerAppends.WithLabelValues(instrument.String()).Add(float64(n))
}

// ObservePublish counts one result per channel.
func (r *Registry) ObservePublish(results []domain.PublishResult) {
	for _, res := range results {
		result := "success"
		if !res.OK {
			result = "failure"
		}
		r.PublishTotal.WithLabelValues(res.Channel, result).Inc()
	}
}

// ObserveRun records the run duration and, on success, the completion time.
func (r *Registry) ObserveRun(started, finished time.Time, success bool) {
	r.RunDuration.Set(finished.Sub(started).Seconds())
	if success {
		r.LastSuccessTime.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes all metrics to path for the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create metrics dir")
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}
	return nil
}
