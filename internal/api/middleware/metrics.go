package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector owns the process-wide request counters surfaced on
// /metrics.
type MetricsCollector struct {
	requests atomic.Int64
	errors   atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// Middleware counts every request, and every 4xx/5xx response as an error.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errors.Add(1)
		}
	})
}

func (mc *MetricsCollector) Requests() int64 {
	return mc.requests.Load()
}

func (mc *MetricsCollector) Errors() int64 {
	return mc.errors.Load()
}
