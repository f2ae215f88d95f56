package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ggoodman/dialog-session-go/result"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ShowDeduplicated("A")
	m.DismissParked("A")
	m.DismissBroadcast("A")
	m.DismissBroadcast("B")
	m.HostCreated()
	m.HostCreated()
	m.HostDestroyed()
	m.SessionShown("alert")
	m.SessionExpired("A")
	m.SessionRaceDismissed("A")
	m.HostRebuilt("A")
	m.ResultDelivered(result.Positive)
	m.ResultDelivered(result.Positive)
	m.ResultDelivered(result.Cancelled)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"deduplicated", m.ShowsDeduplicated, 1},
		{"deferred", m.DismissDeferred, 1},
		{"sent", m.DismissSent, 2},
		{"active", m.HostsActive, 1},
		{"shown", m.HostsShown.WithLabelValues("alert"), 1},
		{"expired", m.Expired, 1},
		{"race", m.RaceDismissed, 1},
		{"rebuilds", m.Rebuilds, 1},
		{"positive", m.Results.WithLabelValues(result.Positive.String()), 2},
		{"cancelled", m.Results.WithLabelValues(result.Cancelled.String()), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ShowDeduplicated("A")
	m.HostCreated()
	m.ResultDelivered(result.Neutral)
}
