// Copyright 2026 Palantir Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpmetrics provides HTTP middleware that logs requests and records
// request metrics in a tagmetrics registry.
package httpmetrics

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/palantir/go-tagmetrics/accumulator"
	"github.com/palantir/go-tagmetrics/appmetrics"
	"github.com/palantir/go-tagmetrics/tagmetrics"
)

// ServerMetrics are the metrics recorded for each request.
type ServerMetrics struct {
	Requests      appmetrics.Tagged[*tagmetrics.Timer[*accumulator.SlidingWindow]] `metric:"server.requests"`
	ResponseBytes appmetrics.Tagged[*tagmetrics.Counter[int64]]                    `metric:"server.response.size"`
	Active        *tagmetrics.Gauge[int64]                                         `metric:"server.requests.active"`

	active atomic.Int64
}

func (m *ServerMetrics) ComputeActive() int64 {
	return m.active.Load()
}

// Request returns the timer for requests with the given method and status.
func (m *ServerMetrics) Request(method string, status int) *tagmetrics.Timer[*accumulator.SlidingWindow] {
	return m.Requests.Tag("method:"+method, "status:"+StatusClass(status))
}

type metricsKey struct{}

// WithServerMetrics returns a copy of ctx that carries m.
func WithServerMetrics(ctx context.Context, m *ServerMetrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, m)
}

// ServerMetricsFromContext returns the metrics in ctx or nil if there are none.
func ServerMetricsFromContext(ctx context.Context) *ServerMetrics {
	m, _ := ctx.Value(metricsKey{}).(*ServerMetrics)
	return m
}

// DefaultMiddleware returns the default middleware stack. The stack:
//
//   - Adds a logger to request contexts
//   - Adds server metrics to request contexts
//   - Adds a request ID to all requests and responses
//   - Allows handlers to exclude requests from logs or metrics
//   - Logs and records metrics for all requests
//
// All components are exported so users can select individual middleware to
// build their own stack if desired.
func DefaultMiddleware(logger zerolog.Logger, registry *tagmetrics.Registry) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		NewMetricsHandler(registry),
		hlog.RequestIDHandler("rid", "X-Request-ID"),
		NewIgnoreHandler(),
		AccessHandler(RecordRequest),
	}
}

// Chain applies middleware to h so that the first element of middleware is
// the outermost handler.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// NewMetricsHandler returns middleware that adds server metrics bound to the
// given registry to the request context. The metrics are created once and
// shared by every request served by the handler.
func NewMetricsHandler(registry *tagmetrics.Registry) func(http.Handler) http.Handler {
	m := appmetrics.New[ServerMetrics](registry)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.active.Add(1)
			defer m.active.Add(-1)

			r = r.WithContext(WithServerMetrics(r.Context(), m))
			next.ServeHTTP(w, r)
		})
	}
}

// LogRequest is an AccessCallback that logs request information.
func LogRequest(r *http.Request, status int, size int64, elapsed time.Duration) {
	if IsIgnored(r, IgnoreRule{Logs: true}) {
		return
	}
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.String()).
		Str("client_ip", r.RemoteAddr).
		Int("status", status).
		Int64("size", size).
		Dur("elapsed", elapsed).
		Str("user_agent", r.UserAgent()).
		Msg("http_request")
}

// CountRequest is an AccessCallback that records request metrics. It does
// nothing if the request context has no server metrics.
func CountRequest(r *http.Request, status int, size int64, elapsed time.Duration) {
	if IsIgnored(r, IgnoreRule{Metrics: true}) {
		return
	}
	m := ServerMetricsFromContext(r.Context())
	if m == nil {
		return
	}
	m.Request(r.Method, status).Record(elapsed)
	m.ResponseBytes.Tag("method:" + r.Method).Add(size)
}

// RecordRequest is an AccessCallback that logs request information and
// records request metrics.
func RecordRequest(r *http.Request, status int, size int64, elapsed time.Duration) {
	LogRequest(r, status, size, elapsed)
	CountRequest(r, status, size, elapsed)
}

type AccessCallback func(r *http.Request, status int, size int64, duration time.Duration)

// AccessHandler returns a handler that call f after each request.
func AccessHandler(f AccessCallback) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := WrapWriter(w)
			next.ServeHTTP(wrapped, r)
			f(r, wrapped.Status(), wrapped.BytesWritten(), time.Since(start))
		})
	}
}

// StatusClass returns the class of an HTTP status code, like "2xx". A status
// of zero means the handler wrote nothing and is reported as "2xx".
func StatusClass(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
