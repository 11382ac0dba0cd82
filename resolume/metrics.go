package resolume

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks ingestion and query counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	messagesReceived prometheus.Counter
	messagesRouted   prometheus.Counter
	messagesDropped  *prometheus.CounterVec
	repliesMatched   prometheus.Counter
	queries          *prometheus.CounterVec
	deckChanges      prometheus.Counter
	queueDepth       prometheus.Gauge
}

// NewMetrics creates the tracker metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolume_messages_received_total",
			Help: "Total number of OSC messages handed to the tracker",
		}),
		messagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolume_messages_routed_total",
			Help: "Total number of messages applied to the entity tree",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolume_messages_dropped_total",
			Help: "Total number of messages dropped by the router",
		}, []string{"reason"}),
		repliesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolume_query_replies_matched_total",
			Help: "Total number of inbound messages consumed as query replies",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolume_queries_total",
			Help: "Total number of synchronous queries by result",
		}, []string{"result"}),
		deckChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolume_deck_changes_total",
			Help: "Total number of deck changes that invalidated the tree",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resolume_ingest_queue_depth",
			Help: "Number of messages waiting for the worker",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.messagesReceived,
			m.messagesRouted,
			m.messagesDropped,
			m.repliesMatched,
			m.queries,
			m.deckChanges,
			m.queueDepth,
		)
	}
	return m
}

func (m *Metrics) received() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

func (m *Metrics) routed() {
	if m != nil {
		m.messagesRouted.Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.messagesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) replyMatched() {
	if m != nil {
		m.repliesMatched.Inc()
	}
}

func (m *Metrics) queryResult(result string) {
	if m != nil {
		m.queries.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) deckChanged() {
	if m != nil {
		m.deckChanges.Inc()
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
