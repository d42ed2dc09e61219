package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the telephony webhook flows.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "webhooks",
			Name:      "inbound_total",
			Help:      "Total inbound Twilio webhooks",
		}, []string{"endpoint", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound SMS sends",
		}, []string{"kind", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "missedcall",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(endpoint, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *WebhookMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *WebhookMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}
