package mockserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are kept on a private registry so several servers can live in one process
type metrics struct {
	registry     *prometheus.Registry
	codesIssued  prometheus.Counter
	checks       *prometheus.CounterVec
	answers      *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
}

func newMetrics(pending func() float64) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shortcode",
			Name:      "codes_issued_total",
			Help:      "Shortcodes handed out.",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcode",
			Name:      "checks_total",
			Help:      "Shortcode checks by result.",
		}, []string{"result"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcode",
			Name:      "answers_total",
			Help:      "User decisions on shortcodes.",
		}, []string{"decision"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcode",
			Name:      "tokens_issued_total",
			Help:      "Token sets issued by grant type.",
		}, []string{"grant_type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.codesIssued,
		m.checks,
		m.answers,
		m.tokensIssued,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "shortcode",
			Name:      "pending_grants",
			Help:      "Shortcodes not yet expired or collected.",
		}, pending),
	)

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
