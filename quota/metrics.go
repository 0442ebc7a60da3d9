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

package quota

import (
	"strconv"

	"github.com/pixelmill/fastquota/monitoring"
)

type governorMetrics struct {
	checks   monitoring.Counter
	recorded monitoring.Counter
	retries  monitoring.Counter
}

func newGovernorMetrics(mf monitoring.MetricFactory) governorMetrics {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	return governorMetrics{
		checks:   mf.NewCounter("quota_eligibility_checks", "Number of fast mode eligibility checks", "privileged", "can_use"),
		recorded: mf.NewCounter("quota_usage_recorded", "Number of attempts to record fast mode usage", "success"),
		retries:  mf.NewCounter("quota_storage_retries", "Number of retried usage storage calls", "op"),
	}
}

func (m governorMetrics) incCheck(e Eligibility) {
	m.checks.Inc(strconv.FormatBool(e.Privileged), strconv.FormatBool(e.CanUse))
}

func (m governorMetrics) incRecorded(err error) {
	m.recorded.Inc(strconv.FormatBool(err == nil))
}
