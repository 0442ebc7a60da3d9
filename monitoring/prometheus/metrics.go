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

// Package prometheus provides a Prometheus-backed monitoring.MetricFactory.
package prometheus

import (
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

// MetricFactory creates Prometheus metrics. Each metric is registered with
// Registerer, or with the default registry when Registerer is nil.
type MetricFactory struct {
	Prefix     string
	Registerer prometheus.Registerer
}

func (pmf MetricFactory) register(c prometheus.Collector) {
	r := pmf.Registerer
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	r.MustRegister(c)
}

// NewCounter creates a Counter backed by a CounterVec.
func (pmf MetricFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: pmf.Prefix + name, Help: help}, labelNames)
	pmf.register(vec)
	return &Counter{name: name, vec: vec}
}

// NewGauge creates a Gauge backed by a GaugeVec.
func (pmf MetricFactory) NewGauge(name, help string, labelNames ...string) monitoring.Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: pmf.Prefix + name, Help: help}, labelNames)
	pmf.register(vec)
	return &Gauge{name: name, vec: vec}
}

// NewHistogram creates a Histogram backed by a HistogramVec. A nil buckets
// slice selects the Prometheus defaults.
func (pmf MetricFactory) NewHistogram(name, help string, buckets []float64, labelNames ...string) monitoring.Histogram {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: pmf.Prefix + name, Help: help, Buckets: buckets}, labelNames)
	pmf.register(vec)
	return &Histogram{name: name, vec: vec}
}

// Counter wraps a CounterVec.
type Counter struct {
	name string
	vec  *prometheus.CounterVec
}

func (c *Counter) with(labelVals []string) prometheus.Counter {
	m, err := c.vec.GetMetricWithLabelValues(labelVals...)
	if err != nil {
		klog.Errorf("counter %s: %v", c.name, err)
		return nil
	}
	return m
}

// Inc adds 1 to the counter.
func (c *Counter) Inc(labelVals ...string) {
	if m := c.with(labelVals); m != nil {
		m.Inc()
	}
}

// Add adds val to the counter.
func (c *Counter) Add(val float64, labelVals ...string) {
	if m := c.with(labelVals); m != nil {
		m.Add(val)
	}
}

// Value returns the current value of the counter.
func (c *Counter) Value(labelVals ...string) float64 {
	m := c.with(labelVals)
	if m == nil {
		return 0
	}
	pb := read(c.name, m)
	return pb.GetCounter().GetValue()
}

// Gauge wraps a GaugeVec.
type Gauge struct {
	name string
	vec  *prometheus.GaugeVec
}

func (g *Gauge) with(labelVals []string) prometheus.Gauge {
	m, err := g.vec.GetMetricWithLabelValues(labelVals...)
	if err != nil {
		klog.Errorf("gauge %s: %v", g.name, err)
		return nil
	}
	return m
}

// Inc adds 1 to the gauge.
func (g *Gauge) Inc(labelVals ...string) {
	if m := g.with(labelVals); m != nil {
		m.Inc()
	}
}

// Dec subtracts 1 from the gauge.
func (g *Gauge) Dec(labelVals ...string) {
	if m := g.with(labelVals); m != nil {
		m.Dec()
	}
}

// Set sets the gauge to val.
func (g *Gauge) Set(val float64, labelVals ...string) {
	if m := g.with(labelVals); m != nil {
		m.Set(val)
	}
}

// Value returns the current value of the gauge.
func (g *Gauge) Value(labelVals ...string) float64 {
	m := g.with(labelVals)
	if m == nil {
		return 0
	}
	pb := read(g.name, m)
	return pb.GetGauge().GetValue()
}

// Histogram wraps a HistogramVec.
type Histogram struct {
	name string
	vec  *prometheus.HistogramVec
}

// Observe records a single observation.
func (h *Histogram) Observe(val float64, labelVals ...string) {
	m, err := h.vec.GetMetricWithLabelValues(labelVals...)
	if err != nil {
		klog.Errorf("histogram %s: %v", h.name, err)
		return
	}
	m.Observe(val)
}

// Info returns the count and sum of observations.
func (h *Histogram) Info(labelVals ...string) (uint64, float64) {
	m, err := h.vec.GetMetricWithLabelValues(labelVals...)
	if err != nil {
		klog.Errorf("histogram %s: %v", h.name, err)
		return 0, 0
	}
	pb := read(h.name, m.(prometheus.Metric))
	return pb.GetHistogram().GetSampleCount(), pb.GetHistogram().GetSampleSum()
}

func read(name string, m prometheus.Metric) *dto.Metric {
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		klog.Errorf("metric %s: Write(): %v", name, err)
	}
	return &pb
}
