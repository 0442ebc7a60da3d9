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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pixelmill/fastquota/util/clock"
)

var fakeTime = time.Date(2016, 10, 3, 12, 38, 27, 36, time.UTC)

func TestHTTPStatsMonitor(t *testing.T) {
	ts := clock.NewFake(fakeTime)
	m := NewHTTPStatsMonitor(ts, InertMetricFactory{})

	handler := func(code int, took time.Duration) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			ts.Advance(took)
			if code != http.StatusOK {
				w.WriteHeader(code)
			}
			w.Write([]byte("body"))
		})
	}

	for _, test := range []struct {
		name string
		code int
		took time.Duration
	}{
		{name: "ok", code: http.StatusOK, took: 500 * time.Millisecond},
		{name: "ok", code: http.StatusOK, took: 2 * time.Second},
		{name: "denied", code: http.StatusPreconditionFailed, took: time.Second},
		{name: "broken", code: http.StatusServiceUnavailable, took: 3 * time.Second},
	} {
		rr := httptest.NewRecorder()
		m.Wrap(test.name, handler(test.code, test.took)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != test.code {
			t.Errorf("%s: code=%d, want %d", test.name, rr.Code, test.code)
		}
	}

	for _, c := range []struct {
		counter Counter
		labels  []string
		want    float64
	}{
		{m.ReqCount, []string{"ok"}, 2},
		{m.RespCount, []string{"ok", "200"}, 2},
		{m.RespCount, []string{"denied", "412"}, 1},
		{m.ReqErrorCount, []string{"denied"}, 0},
		{m.ReqErrorCount, []string{"broken"}, 1},
		{m.RespCount, []string{"broken", "503"}, 1},
	} {
		if got := c.counter.Value(c.labels...); got != c.want {
			t.Errorf("counter%v=%v, want %v", c.labels, got, c.want)
		}
	}
	if n, sum := m.ReqSuccessLatency.Info("ok"); n != 2 || sum != 2.5 {
		t.Errorf("success latency{ok}=(%d, %v), want (2, 2.5)", n, sum)
	}
	if n, sum := m.ReqErrorLatency.Info("broken"); n != 1 || sum != 3 {
		t.Errorf("error latency{broken}=(%d, %v), want (1, 3)", n, sum)
	}
}

func TestHTTPStatsMonitorPanic(t *testing.T) {
	ts := clock.NewFake(fakeTime)
	m := NewHTTPStatsMonitor(ts, InertMetricFactory{})
	h := m.Wrap("boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		ts.Advance(1500 * time.Millisecond)
		panic("boom")
	}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	if got := m.ReqErrorCount.Value("boom"); got != 1 {
		t.Errorf("http_errors{boom}=%v, want 1", got)
	}
	if n, sum := m.ReqErrorLatency.Info("boom"); n != 1 || sum != 1.5 {
		t.Errorf("error latency{boom}=(%d, %v), want (1, 1.5)", n, sum)
	}
}
