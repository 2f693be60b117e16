package hostlink

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hostlink"

// Reasons for dropping inbound envelopes.
const (
	dropInvalidOrigin = "origin"
	dropMalformed     = "malformed"
	dropUnmatched     = "unmatched"
)

type metrics struct {
	callsSent        prometheus.Counter
	callsQueued      prometheus.Counter
	repliesResolved  prometheus.Counter
	eventsDispatched prometheus.Counter
	dropped          *prometheus.CounterVec
	pending          prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		callsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calls_sent_total",
			Help:      "Envelopes transmitted to the host.",
		}),
		callsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calls_queued_total",
			Help:      "Calls queued until the handshake completed.",
		}),
		repliesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "replies_resolved_total",
			Help:      "Replies matched to a pending call.",
		}),
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Events delivered to registered handlers.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "envelopes_dropped_total",
			Help:      "Inbound envelopes dropped without dispatch.",
		}, []string{"reason"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "calls_pending",
			Help:      "Calls waiting for a reply.",
		}),
	}

	if registerer == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.callsSent, m.callsQueued, m.repliesResolved, m.eventsDispatched, m.dropped, m.pending,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering metrics failed")
		}
	}
	return m, nil
}
