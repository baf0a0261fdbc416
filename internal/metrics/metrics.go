// Package metrics exposes the Prometheus collectors of the API: auth flow
// outcomes and HTTP request latency. Everything registers on the default
// registry and is served by promhttp under /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/carefinder-api/internal/apperror"
)

var (
	authOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carefinder",
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Login, refresh and logout results by flow and outcome.",
	}, []string{"flow", "outcome"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carefinder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// AuthOutcome counts one finished auth flow.
func AuthOutcome(flow, outcome string) {
	authOutcomes.WithLabelValues(flow, outcome).Inc()
}

// AuthOutcomeCounter exposes the counter for tests.
func AuthOutcomeCounter(flow, outcome string) prometheus.Counter {
	return authOutcomes.WithLabelValues(flow, outcome)
}

// HTTP records request latency labelled by the route template.
func HTTP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusOf(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf predicts the status the error handler will write for err.
func statusOf(err error) int {
	if ae, ok := apperror.As(err); ok {
		return ae.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
