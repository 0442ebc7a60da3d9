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

// Package testonly holds conformance checks for monitoring.MetricFactory
// implementations.
package testonly

import (
	"testing"

	"github.com/pixelmill/fastquota/monitoring"
)

var labelCases = []struct {
	suffix     string
	labelNames []string
	labelVals  []string
}{
	{suffix: "0"},
	{suffix: "1", labelNames: []string{"op"}, labelVals: []string{"decrement"}},
	{suffix: "2", labelNames: []string{"op", "result"}, labelVals: []string{"decrement", "ok"}},
}

// TestCounter exercises Counters created by factory.
func TestCounter(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, lc := range labelCases {
		name := "test_counter" + lc.suffix
		c := factory.NewCounter(name, "Test only", lc.labelNames...)
		if got := c.Value(lc.labelVals...); got != 0 {
			t.Errorf("%s.Value()=%v, want 0", name, got)
		}
		c.Inc(lc.labelVals...)
		c.Add(2.5, lc.labelVals...)
		if got, want := c.Value(lc.labelVals...), 3.5; got != want {
			t.Errorf("%s.Value()=%v, want %v", name, got, want)
		}
		bogus := append(append([]string{}, lc.labelVals...), "bogus")
		c.Inc(bogus...)
		if got := c.Value(bogus...); got != 0 {
			t.Errorf("%s.Value(%v)=%v, want 0 for wrong label count", name, bogus, got)
		}
	}
}

// TestGauge exercises Gauges created by factory.
func TestGauge(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, lc := range labelCases {
		name := "test_gauge" + lc.suffix
		g := factory.NewGauge(name, "Test only", lc.labelNames...)
		g.Inc(lc.labelVals...)
		g.Inc(lc.labelVals...)
		g.Dec(lc.labelVals...)
		if got, want := g.Value(lc.labelVals...), 1.0; got != want {
			t.Errorf("%s.Value()=%v, want %v", name, got, want)
		}
		g.Set(42, lc.labelVals...)
		if got, want := g.Value(lc.labelVals...), 42.0; got != want {
			t.Errorf("%s.Value()=%v, want %v", name, got, want)
		}
	}
}

// TestHistogram exercises Histograms created by factory.
func TestHistogram(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, lc := range labelCases {
		name := "test_histogram" + lc.suffix
		h := factory.NewHistogram(name, "Test only", monitoring.LatencyBuckets, lc.labelNames...)
		for _, v := range []float64{1, 2, 3} {
			h.Observe(v, lc.labelVals...)
		}
		if count, sum := h.Info(lc.labelVals...); count != 3 || sum != 6 {
			t.Errorf("%s.Info()=%v,%v, want 3,6", name, count, sum)
		}
	}
}
