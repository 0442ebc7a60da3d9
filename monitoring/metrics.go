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

// Package monitoring provides the metric abstractions used by the ledger, the
// quota governor and the orchestrator. Implementations live in subpackages.
package monitoring

// MetricFactory creates the metrics a component needs. Components receive a
// factory at construction time and never reach for a global registry.
type MetricFactory interface {
	NewCounter(name, help string, labelNames ...string) Counter
	NewGauge(name, help string, labelNames ...string) Gauge
	NewHistogram(name, help string, buckets []float64, labelNames ...string) Histogram
}

// Counter is a metric for values that only go up.
type Counter interface {
	Inc(labelVals ...string)
	Add(val float64, labelVals ...string)
	// Value reads the current value. Mostly useful in tests.
	Value(labelVals ...string) float64
}

// Gauge is a metric for values that go up and down.
type Gauge interface {
	Inc(labelVals ...string)
	Dec(labelVals ...string)
	Set(val float64, labelVals ...string)
	Value(labelVals ...string) float64
}

// Histogram tracks the distribution of observations.
type Histogram interface {
	Observe(val float64, labelVals ...string)
	// Info returns the count and sum of observations for a set of labels.
	Info(labelVals ...string) (uint64, float64)
}

// LatencyBuckets covers operations from a few milliseconds up to the
// two-minute ceiling of the slowest external providers.
var LatencyBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120}
