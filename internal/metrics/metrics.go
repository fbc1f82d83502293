// Package metrics collects Prometheus gauges for a single watcher run and
// flushes them to a Pushgateway or a node_exporter textfile.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// DefaultJob is the Pushgateway job label.
const DefaultJob = "pagewatch"

// FlushConfig says where Flush sends the collected metrics.
type FlushConfig struct {
	PushgatewayURL string
	Job            string
	Textfile       string
}

// Enabled reports whether any sink is configured.
func (c FlushConfig) Enabled() bool {
	return c.PushgatewayURL != "" || c.Textfile != ""
}

// Run holds the collectors for one invocation on a private registry, so
// repeated runs in one process never collide.
type Run struct {
	site     string
	registry *prometheus.Registry

	lastRun       prometheus.Gauge
	lastChange    prometheus.Gauge
	outcome       *prometheus.GaugeVec
	fetchAttempts prometheus.Gauge
	fetchDuration prometheus.Gauge
	pageBytes     prometheus.Gauge
	notifications *prometheus.GaugeVec

	changed bool
}

// NewRun registers the run collectors for the watched URL.
func NewRun(rawURL string) *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		site:     SanitizeSite(rawURL),
		registry: reg,
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_last_run_timestamp_seconds",
			Help: "Unix time of the last completed check.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_last_change_timestamp_seconds",
			Help: "Unix time of the last detected change.",
		}),
		outcome: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_last_run_outcome",
			Help: "Set to 1 for the outcome of the last check.",
		}, []string{"outcome"}),
		fetchAttempts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_fetch_attempts",
			Help: "Fetch attempts used by the last check.",
		}),
		fetchDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_fetch_duration_seconds",
			Help: "Duration of the successful fetch in the last check.",
		}),
		pageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_page_bytes",
			Help: "Size of the page body fetched by the last check.",
		}),
		notifications: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_notifications",
			Help: "Per-channel delivery status of the last alert, 1 for the reported status.",
		}, []string{"channel", "status"}),
	}
}

// Registry exposes the underlying registry as a Gatherer.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// Site is the sanitized host used as a grouping label.
func (r *Run) Site() string {
	return r.site
}

// ObserveOutcome records the run outcome at time at.
func (r *Run) ObserveOutcome(outcome watch.Outcome, at time.Time) {
	r.outcome.Reset()
	r.outcome.WithLabelValues(string(outcome)).Set(1)
	r.lastRun.Set(float64(at.Unix()))
	if outcome == watch.OutcomeChanged && !r.changed {
		// Registered lazily so a push without a change keeps the previous value.
		r.registry.MustRegister(r.lastChange)
		r.changed = true
	}
	if outcome == watch.OutcomeChanged {
		r.lastChange.Set(float64(at.Unix()))
	}
}

// ObserveFetch records transport facts of a successful fetch.
func (r *Run) ObserveFetch(page watch.Page) {
	r.fetchAttempts.Set(float64(page.Attempts))
	r.fetchDuration.Set(page.Duration.Seconds())
	r.pageBytes.Set(float64(len(page.Body)))
}

// ObserveFetchFailure records the attempts spent on a failed fetch.
func (r *Run) ObserveFetchFailure(attempts int) {
	r.fetchAttempts.Set(float64(attempts))
}

// ObserveNotification records one channel result.
func (r *Run) ObserveNotification(channel, status string) {
	r.notifications.WithLabelValues(channel, status).Set(1)
}

// Flush sends the metrics to every configured sink. Pushes use POST semantics
// so metrics absent from this run keep their previous values in the group.
func (r *Run) Flush(ctx context.Context, cfg FlushConfig) error {
	var errs []error
	if cfg.PushgatewayURL != "" {
		job := cfg.Job
		if job == "" {
			job = DefaultJob
		}
		err := push.New(cfg.PushgatewayURL, job).
			Gatherer(r.registry).
			Grouping("site", r.site).
			AddContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Textfile, r.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
