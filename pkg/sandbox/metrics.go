package sandbox

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts sandbox traffic.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	downloadBytesTotal prometheus.Counter
	injectedFailures   *prometheus.CounterVec
}

// NewMetrics registers the sandbox metrics with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbx",
			Subsystem: "sandbox",
			Name:      "requests_total",
			Help:      "Requests served by route and status code",
		}, []string{"route", "code"}),
		downloadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dbx",
			Subsystem: "sandbox",
			Name:      "download_bytes_total",
			Help:      "Content bytes written by files/download",
		}),
		injectedFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbx",
			Subsystem: "sandbox",
			Name:      "injected_failures_total",
			Help:      "Faults injected by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) observeRequest(route string, code int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) addDownloadBytes(n int64) {
	if n > 0 {
		m.downloadBytesTotal.Add(float64(n))
	}
}

func (m *Metrics) injected(kind string) {
	m.injectedFailures.WithLabelValues(kind).Inc()
}
