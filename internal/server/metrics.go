package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "whisper_api"

type metrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	transcriptions *prometheus.CounterVec
	transcribeTime prometheus.Histogram
	uploadBytes    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transcriptions_total",
			Help:      "Transcription attempts by outcome.",
		}, []string{"outcome"}),
		transcribeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transcription_duration_seconds",
			Help:      "Time spent in the transcription engine.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upload_bytes",
			Help:      "Size of accepted audio uploads.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.requestLatency, m.transcriptions, m.transcribeTime, m.uploadBytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		code := c.Response().Status
		var he *echo.HTTPError
		if err != nil {
			code = http.StatusInternalServerError
			if errors.As(err, &he) {
				code = he.Code
			}
		}

		method := c.Request().Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		m.requestLatency.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
		return err
	}
}

func (m *metrics) observeTranscription(err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
	m.transcribeTime.Observe(elapsed.Seconds())
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
