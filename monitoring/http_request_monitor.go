// Copyright 2026 Google LLC. All Rights Reserved.
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

package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pixelmill/fastquota/util/clock"
)

// HTTPStatsMonitor records request counts, response codes and latencies of
// HTTP handlers. A response with a 5xx code, or a handler that panics,
// counts as an error.
type HTTPStatsMonitor struct {
	timeSource        clock.TimeSource
	ReqCount          Counter
	RespCount         Counter
	ReqSuccessLatency Histogram
	ReqErrorCount     Counter
	ReqErrorLatency   Histogram
}

// NewHTTPStatsMonitor creates the metrics of an HTTPStatsMonitor with mf.
func NewHTTPStatsMonitor(timeSource clock.TimeSource, mf MetricFactory) *HTTPStatsMonitor {
	if mf == nil {
		mf = InertMetricFactory{}
	}
	if timeSource == nil {
		timeSource = clock.System
	}
	return &HTTPStatsMonitor{
		timeSource:        timeSource,
		ReqCount:          mf.NewCounter("http_requests", "Number of HTTP requests", "handler"),
		RespCount:         mf.NewCounter("http_responses", "Number of HTTP responses by status code", "handler", "code"),
		ReqSuccessLatency: mf.NewHistogram("http_success_latency", "Latency of successful requests in seconds", LatencyBuckets, "handler"),
		ReqErrorCount:     mf.NewCounter("http_errors", "Number of requests that failed with a server error", "handler"),
		ReqErrorLatency:   mf.NewHistogram("http_error_latency", "Latency of requests that failed with a server error in seconds", LatencyBuckets, "handler"),
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (m *HTTPStatsMonitor) recordFailure(name string, code int, start time.Time) {
	m.RespCount.Inc(name, strconv.Itoa(code))
	m.ReqErrorCount.Inc(name)
	m.ReqErrorLatency.Observe(clock.SecondsSince(m.timeSource, start), name)
}

// Wrap returns h instrumented under the given handler name.
func (m *HTTPStatsMonitor) Wrap(name string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		m.ReqCount.Inc(name)
		start := m.timeSource.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			if p := recover(); p != nil {
				m.recordFailure(name, http.StatusInternalServerError, start)
				panic(p)
			}
		}()

		h.ServeHTTP(rec, req)

		code := rec.code
		if code == 0 {
			code = http.StatusOK
		}
		if code >= 500 {
			m.recordFailure(name, code, start)
			return
		}
		m.RespCount.Inc(name, strconv.Itoa(code))
		m.ReqSuccessLatency.Observe(clock.SecondsSince(m.timeSource, start), name)
	})
}
