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

package orchestrator

import (
	"github.com/pixelmill/fastquota/monitoring"
)

const (
	modeFast     = "fast"
	modeStandard = "standard"

	resultOK                  = "ok"
	resultCached              = "cached"
	resultInsufficientBalance = "insufficient_balance"
	resultQuotaExhausted      = "quota_exhausted"
	resultFailed              = "failed"
	resultUsageNotRecorded    = "usage_not_recorded"
	resultError               = "error"
)

type runnerMetrics struct {
	operations monitoring.Counter
	latency    monitoring.Histogram
}

func newRunnerMetrics(mf monitoring.MetricFactory) runnerMetrics {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	return runnerMetrics{
		operations: mf.NewCounter("orchestrator_operations", "Number of orchestrated operations by mode and result", "mode", "result"),
		latency:    mf.NewHistogram("orchestrator_operation_seconds", "Time spent in the external operation, including any standard mode delay", monitoring.LatencyBuckets, "mode"),
	}
}

func mode(fast bool) string {
	if fast {
		return modeFast
	}
	return modeStandard
}
