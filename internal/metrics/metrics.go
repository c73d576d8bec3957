package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

type Metrics struct {
	reg *prometheus.Registry

	Dispatched    *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	Callbacks     *prometheus.CounterVec
	Transmissions *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolwire_messages_dispatched_total",
			Help: "Message records queued by dispatch, per channel",
		}, []string{"channel"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolwire_messages_ineligible_total",
			Help: "Recipient/channel pairs skipped by eligibility rules",
		}, []string{"channel"}),
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolwire_provider_callbacks_total",
			Help: "Provider status callbacks by provider and result",
		}, []string{"provider", "result"}),
		Transmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolwire_transmissions_total",
			Help: "Outbound provider submissions by channel and result",
		}, []string{"channel", "result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordQueued(ch model.Channel) {
	m.Dispatched.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) RecordSkipped(ch model.Channel) {
	m.Skipped.WithLabelValues(string(ch)).Inc()
}
