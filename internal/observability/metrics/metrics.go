package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics exposes counters/histograms for the chat pipeline.
type ChatMetrics struct {
	messagesTotal      *prometheus.CounterVec
	extractionLatency  prometheus.Histogram
	extractionFailures prometheus.Counter
	fieldRejections    *prometheus.CounterVec
	actionsTotal       *prometheus.CounterVec
	injectionBlocks    prometheus.Counter
	replyLatency       prometheus.Histogram
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ozzie",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total chat messages processed",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ozzie",
			Subsystem: "chat",
			Name:      "extraction_latency_seconds",
			Help:      "Latency of profile extraction calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}),
		extractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ozzie",
			Subsystem: "chat",
			Name:      "extraction_failures_total",
			Help:      "Extraction calls that failed or timed out",
		}),
		fieldRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ozzie",
			Subsystem: "profile",
			Name:      "field_rejections_total",
			Help:      "Extracted fields rejected by the merge rules",
		}, []string{"field"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ozzie",
			Subsystem: "profile",
			Name:      "actions_total",
			Help:      "Actions emitted by the profile engine",
		}, []string{"action"}),
		injectionBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ozzie",
			Subsystem: "chat",
			Name:      "injection_blocks_total",
			Help:      "Messages blocked by the prompt-injection guard",
		}),
		replyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ozzie",
			Subsystem: "chat",
			Name:      "reply_latency_seconds",
			Help:      "Latency of reply generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.messagesTotal,
		m.extractionLatency,
		m.extractionFailures,
		m.fieldRejections,
		m.actionsTotal,
		m.injectionBlocks,
		m.replyLatency,
	)
	return m
}

func (m *ChatMetrics) ObserveExtraction(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.extractionLatency.Observe(d.Seconds())
	if failed {
		m.extractionFailures.Inc()
	}
}

func (m *ChatMetrics) ObserveReply(d time.Duration) {
	if m == nil {
		return
	}
	m.replyLatency.Observe(d.Seconds())
}

// ObserveMessage counts a processed message by outcome
// (ok, degraded, blocked, rejected, error).
func (m *ChatMetrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(outcome).Inc()
}

func (m *ChatMetrics) ObserveRejection(field string) {
	if m == nil {
		return
	}
	m.fieldRejections.WithLabelValues(field).Inc()
}

func (m *ChatMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

func (m *ChatMetrics) ObserveInjectionBlock() {
	if m == nil {
		return
	}
	m.injectionBlocks.Inc()
}
