// Package metrics records workflow outcomes as Prometheus counters.
package metrics

import (
	"fmt"

	"github.com/hylla/sgc/internal/app"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements app.Metrics and notify.Metrics.
type Recorder struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the sgc counters on a fresh registry.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "transitions_total",
			Help:      "Workflow transitions attempted, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "notifications_total",
			Help:      "Notification deliveries attempted, by template and outcome.",
		}, []string{"template", "outcome"}),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.notifications} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// TransitionObserved counts one transition attempt.
func (r *Recorder) TransitionObserved(operation string, err error) {
	r.transitions.WithLabelValues(operation, app.ErrorClass(err)).Inc()
}

// NotificationObserved counts one delivery attempt.
func (r *Recorder) NotificationObserved(template string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	r.notifications.WithLabelValues(template, outcome).Inc()
}

// Gatherer exposes the registry for scraping or export.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the current counters in the text exposition format, for a
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
