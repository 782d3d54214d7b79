// Package metrics counts HTTP requests served by an App, in prometheus' manner.
//
// Each Metrics has its own registry, so that Apps rebuilt on reload do not collide.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "closet"

type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	reg.MustRegister(
		requests, latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{registry: reg, requests: requests, latency: latency}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware observes each request.
//
// Requests matching no route are labeled with route "unmatched".
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" || isNotFound(err) {
			route = "unmatched"
		}
		meth := c.Request().Method

		m.requests.WithLabelValues(meth, route, strconv.Itoa(status(c, err))).Inc()
		m.latency.WithLabelValues(meth, route).Observe(time.Since(begin).Seconds())
		return err
	}
}

// Handler exposes collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// status guesses the status code which will be sent.
//
// When the handler returns error, the response is not written yet.
func status(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	he := new(echo.HTTPError)
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func isNotFound(err error) bool {
	return errors.Is(err, echo.ErrNotFound) || errors.Is(err, echo.ErrMethodNotAllowed)
}
