// Package metrics exposes the Prometheus instrumentation surface for the
// duplex channel, the ingestion pipeline, and the background scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every custom Prometheus collector the server registers.
type Metrics struct {
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	IngestRequests     prometheus.Counter
	IngestLatency      prometheus.Histogram
	IngestErrors       *prometheus.CounterVec
	IngestTierResolved *prometheus.CounterVec

	RetryQueueDepth     prometheus.Gauge
	FailedReminderTotal prometheus.Counter
	DeadLetterTotal     prometheus.Counter
}

var global *Metrics

// Init registers every collector against the default Prometheus registry.
// connected, if non-nil, is polled for a live WebSocket-connected gauge
// (mirrors the teacher's ConnectionManager.Count() GaugeFunc).
func Init(connected func() bool) *Metrics {
	m := &Metrics{
		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "argus_websocket_connections_active",
			Help: "Number of active WebSocket connections (0 or 1, single-duplex channel).",
		}),
		WebSocketMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_websocket_messages_total",
			Help: "Total number of WebSocket frames by type and direction.",
		}, []string{"type", "direction"}),

		IngestRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "argus_ingest_requests_total",
			Help: "Total number of webhook messages processed by the ingestion pipeline.",
		}),
		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_ingest_duration_seconds",
			Help:    "Webhook processing latency in seconds, end to end through the tier orchestrator.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_ingest_errors_total",
			Help: "Total number of ingestion errors by stage.",
		}, []string{"stage"}),
		IngestTierResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_ingest_tier_resolved_total",
			Help: "Total number of messages resolved by each tier (t1, t2, t3).",
		}, []string{"tier"}),

		RetryQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "argus_scheduler_retry_queue_depth",
			Help: "Number of notification deliveries currently awaiting retry.",
		}),
		FailedReminderTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "argus_scheduler_failed_reminders_total",
			Help: "Total number of notification deliveries permanently dropped after exhausting retries.",
		}),
		DeadLetterTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "argus_dead_letter_total",
			Help: "Total number of operations written to the dead-letter log.",
		}),
	}

	if connected != nil {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "argus_websocket_connected",
				Help: "Whether a WebSocket client is currently attached (1) or not (0).",
			},
			func() float64 {
				if connected() {
					return 1
				}
				return 0
			},
		))
	}

	global = m
	return m
}

// Get returns the global Metrics instance, or nil if Init was never called.
func Get() *Metrics {
	return global
}

func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketConnections.Inc()
}

func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketConnections.Dec()
}

func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	m.WebSocketMessages.WithLabelValues(msgType, direction).Inc()
}

func (m *Metrics) RecordIngestRequest() {
	m.IngestRequests.Inc()
}

func (m *Metrics) RecordIngestLatency(seconds float64) {
	m.IngestLatency.Observe(seconds)
}

func (m *Metrics) RecordIngestError(stage string) {
	m.IngestErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordTierResolved(tier string) {
	m.IngestTierResolved.WithLabelValues(tier).Inc()
}

func (m *Metrics) SetRetryQueueDepth(n int) {
	m.RetryQueueDepth.Set(float64(n))
}

func (m *Metrics) RecordFailedReminder() {
	m.FailedReminderTotal.Inc()
}

func (m *Metrics) RecordDeadLetter() {
	m.DeadLetterTotal.Inc()
}
