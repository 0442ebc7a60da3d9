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
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics that only live in memory. Used in tests
// and wherever no exporter is configured.
type InertMetricFactory struct{}

// NewCounter creates an in-memory Counter.
func (InertMetricFactory) NewCounter(name, help string, labelNames ...string) Counter {
	return newInertValue(name, len(labelNames))
}

// NewGauge creates an in-memory Gauge.
func (InertMetricFactory) NewGauge(name, help string, labelNames ...string) Gauge {
	return newInertValue(name, len(labelNames))
}

// NewHistogram creates an in-memory Histogram. Buckets are ignored.
func (InertMetricFactory) NewHistogram(name, help string, _ []float64, labelNames ...string) Histogram {
	return &inertHistogram{
		name:       name,
		labelCount: len(labelNames),
		counts:     make(map[string]uint64),
		sums:       make(map[string]float64),
	}
}

// inertValue backs both Counter and Gauge.
type inertValue struct {
	name       string
	labelCount int

	mu   sync.Mutex
	vals map[string]float64
}

func newInertValue(name string, labelCount int) *inertValue {
	return &inertValue{name: name, labelCount: labelCount, vals: make(map[string]float64)}
}

func (v *inertValue) Inc(labelVals ...string) { v.update(labelVals, func(f float64) float64 { return f + 1 }) }
func (v *inertValue) Dec(labelVals ...string) { v.update(labelVals, func(f float64) float64 { return f - 1 }) }

func (v *inertValue) Add(val float64, labelVals ...string) {
	v.update(labelVals, func(f float64) float64 { return f + val })
}

func (v *inertValue) Set(val float64, labelVals ...string) {
	v.update(labelVals, func(float64) float64 { return val })
}

func (v *inertValue) update(labelVals []string, f func(float64) float64) {
	key, err := joinLabels(v.name, labelVals, v.labelCount)
	if err != nil {
		klog.Error(err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[key] = f(v.vals[key])
}

func (v *inertValue) Value(labelVals ...string) float64 {
	key, err := joinLabels(v.name, labelVals, v.labelCount)
	if err != nil {
		klog.Error(err)
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vals[key]
}

type inertHistogram struct {
	name       string
	labelCount int

	mu     sync.Mutex
	counts map[string]uint64
	sums   map[string]float64
}

func (h *inertHistogram) Observe(val float64, labelVals ...string) {
	key, err := joinLabels(h.name, labelVals, h.labelCount)
	if err != nil {
		klog.Error(err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[key]++
	h.sums[key] += val
}

func (h *inertHistogram) Info(labelVals ...string) (uint64, float64) {
	key, err := joinLabels(h.name, labelVals, h.labelCount)
	if err != nil {
		klog.Error(err)
		return 0, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[key], h.sums[key]
}

func joinLabels(name string, labelVals []string, want int) (string, error) {
	if len(labelVals) != want {
		return "", fmt.Errorf("metric %s: got %d label values, want %d", name, len(labelVals), want)
	}
	return strings.Join(labelVals, "|"), nil
}
