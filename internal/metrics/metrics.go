// Package metrics exposes Prometheus counters for dialog sessions. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ggoodman/dialog-session-go/result"
)

// Metrics holds all dialog collectors.
type Metrics struct {
	// Registry metrics
	ShowsDeduplicated prometheus.Counter
	DismissDeferred   prometheus.Counter
	DismissSent       prometheus.Counter

	// Host metrics
	HostsActive   prometheus.Gauge
	HostsShown    *prometheus.CounterVec
	Expired       prometheus.Counter
	RaceDismissed prometheus.Counter
	Rebuilds      prometheus.Counter
	Results       *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ShowsDeduplicated: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_shows_deduplicated_total",
			Help: "Show requests rejected because the identifier was already showing",
		}),
		DismissDeferred: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_dismiss_deferred_total",
			Help: "Dismiss requests parked until the session confirmed",
		}),
		DismissSent: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_dismiss_sent_total",
			Help: "Dismiss requests broadcast to live sessions",
		}),
		HostsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialog_hosts_active",
			Help: "Number of dialog hosts not yet destroyed",
		}),
		HostsShown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dialog_hosts_shown_total",
			Help: "Sessions that reached rendering, by content kind",
		}, []string{"kind"}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_sessions_expired_total",
			Help: "Sessions ended because their content handoff was gone",
		}),
		RaceDismissed: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_sessions_race_dismissed_total",
			Help: "Sessions ended at confirmation by a dismiss that arrived earlier",
		}),
		Rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "dialog_host_rebuilds_total",
			Help: "Host rebuilds that reattached retained content",
		}),
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dialog_results_total",
			Help: "Result envelopes delivered, by result code",
		}, []string{"code"}),
	}
}

// registry.Observer

func (m *Metrics) ShowDeduplicated(string) {
	if m != nil {
		m.ShowsDeduplicated.Inc()
	}
}

func (m *Metrics) DismissParked(string) {
	if m != nil {
		m.DismissDeferred.Inc()
	}
}

func (m *Metrics) DismissBroadcast(string) {
	if m != nil {
		m.DismissSent.Inc()
	}
}

// host.Observer

func (m *Metrics) HostCreated() {
	if m != nil {
		m.HostsActive.Inc()
	}
}

func (m *Metrics) HostDestroyed() {
	if m != nil {
		m.HostsActive.Dec()
	}
}

func (m *Metrics) SessionShown(kind string) {
	if m != nil {
		m.HostsShown.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SessionExpired(string) {
	if m != nil {
		m.Expired.Inc()
	}
}

func (m *Metrics) SessionRaceDismissed(string) {
	if m != nil {
		m.RaceDismissed.Inc()
	}
}

func (m *Metrics) HostRebuilt(string) {
	if m != nil {
		m.Rebuilds.Inc()
	}
}

func (m *Metrics) ResultDelivered(code result.Code) {
	if m != nil {
		m.Results.WithLabelValues(code.String()).Inc()
	}
}
