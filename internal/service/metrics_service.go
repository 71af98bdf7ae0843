package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the purchase
// and reconciliation flows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	purchasesTotal  *prometheus.CounterVec
	reconcileTotal  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	purchasesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Purchase attempts by outcome",
	}, []string{"outcome"})

	reconcileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_actions_total",
		Help: "Enrolment expiry actions by policy",
	}, []string{"policy"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, purchasesTotal, reconcileTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		purchasesTotal:  purchasesTotal,
		reconcileTotal:  reconcileTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordPurchase counts a purchase attempt by outcome.
func (m *MetricsService) RecordPurchase(outcome string) {
	if m == nil {
		return
	}
	m.purchasesTotal.WithLabelValues(outcome).Inc()
}

// RecordReconcileAction counts one unenrol/suspend action by the policy
// that triggered it.
func (m *MetricsService) RecordReconcileAction(policy string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(policy).Inc()
}
