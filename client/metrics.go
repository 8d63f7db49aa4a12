package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a ComfyClient reports to.
type Metrics struct {
	requests       *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	wsMessages     *prometheus.CounterVec
}

// NewMetrics creates the client collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comfyworkflow",
			Subsystem: "client",
			Name:      "http_requests_total",
			Help:      "HTTP requests made to the ComfyUI server.",
		}, []string{"endpoint", "code"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "comfyworkflow",
			Subsystem: "client",
			Name:      "render_duration_seconds",
			Help:      "Time from queueing a prompt to having all of its images.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"result"}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comfyworkflow",
			Subsystem: "client",
			Name:      "websocket_messages_total",
			Help:      "Status messages received on the ComfyUI websocket.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.renderDuration, m.wsMessages)
	}
	return m
}

func (m *Metrics) observeRequest(endpoint string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func (m *Metrics) observeRender(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.renderDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeMessage(msgType string) {
	if m == nil {
		return
	}
	m.wsMessages.WithLabelValues(msgType).Inc()
}
