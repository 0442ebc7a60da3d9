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
	"context"
	"fmt"
	"time"

	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"github.com/pixelmill/fastquota/util/clock"
	"k8s.io/klog/v2"
)

const (
	// WeeklyLimit is the default number of fast mode uses a standard account
	// gets per week.
	WeeklyLimit = 3
	// Unlimited stands in for the remaining uses and the limit of
	// privileged accounts.
	Unlimited = -1
)

// Eligibility is the answer to "may this account use fast mode now?".
type Eligibility struct {
	CanUse                   bool
	RemainingFastGenerations int
	WeeklyLimit              int
	Privileged               bool
}

// Status is Eligibility plus the figures needed to display the allowance.
type Status struct {
	Eligibility
	UsedThisWeek int
	WeekStart    time.Time
	ResetsAt     time.Time
}

// Options configures a Governor.
type Options struct {
	// Limit is the weekly allowance of standard accounts. Defaults to
	// WeeklyLimit.
	Limit int
	// Location is the time zone weeks are observed in. Defaults to UTC.
	Location *time.Location
	// TimeSource defaults to clock.System.
	TimeSource clock.TimeSource
	// Retry bounds retries of transient storage failures. The zero value
	// does not retry.
	Retry storage.RetryPolicy
	// MetricFactory defaults to monitoring.InertMetricFactory.
	MetricFactory monitoring.MetricFactory
}

// Governor decides and records fast mode use. It keeps no state of its own
// and is safe for concurrent use.
type Governor struct {
	us      storage.UsageStorage
	limit   int
	loc     *time.Location
	ts      clock.TimeSource
	retry   storage.RetryPolicy
	metrics governorMetrics
}

// NewGovernor returns a Governor that keeps usage counters in us.
func NewGovernor(us storage.UsageStorage, opts Options) *Governor {
	g := &Governor{
		us:      us,
		limit:   opts.Limit,
		loc:     opts.Location,
		ts:      opts.TimeSource,
		retry:   opts.Retry,
		metrics: newGovernorMetrics(opts.MetricFactory),
	}
	if g.limit <= 0 {
		g.limit = WeeklyLimit
	}
	if g.loc == nil {
		g.loc = time.UTC
	}
	if g.ts == nil {
		g.ts = clock.System
	}
	return g
}

// Limit returns the weekly allowance of standard accounts.
func (g *Governor) Limit() int {
	return g.limit
}

// CurrentWeek returns the start of the week the Governor's clock is in.
func (g *Governor) CurrentWeek() time.Time {
	return WeekStart(g.ts.Now(), g.loc)
}

func unlimited() Eligibility {
	return Eligibility{
		CanUse:                   true,
		RemainingFastGenerations: Unlimited,
		WeeklyLimit:              Unlimited,
		Privileged:               true,
	}
}

func (g *Governor) eligibility(count int) Eligibility {
	remaining := g.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Eligibility{
		CanUse:                   count < g.limit,
		RemainingFastGenerations: remaining,
		WeeklyLimit:              g.limit,
	}
}

func (g *Governor) withRetry(ctx context.Context, op, id string, f func() error) error {
	return g.retry.Do(ctx, f, func(err error, wait time.Duration) {
		g.metrics.retries.Inc(op)
		klog.Warningf("quota %s for %q failed, retrying in %v: %v", op, id, wait, err)
	})
}

// usage returns this week's count for id, creating the counter if needed.
func (g *Governor) usage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	var count int
	err := g.withRetry(ctx, "ensure", id, func() error {
		var err error
		count, err = g.us.EnsureUsage(ctx, id, weekStart)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reading fast mode usage of %q: %w", id, err)
	}
	return count, nil
}

// CheckEligibility reports whether the account may use fast mode now.
// Privileged accounts are always eligible and storage is not consulted.
func (g *Governor) CheckEligibility(ctx context.Context, id string, privileged bool) (Eligibility, error) {
	st, err := g.GetStatus(ctx, id, privileged)
	if err != nil {
		return Eligibility{}, err
	}
	return st.Eligibility, nil
}

// GetStatus is CheckEligibility plus this week's usage and window.
func (g *Governor) GetStatus(ctx context.Context, id string, privileged bool) (Status, error) {
	weekStart := g.CurrentWeek()
	st := Status{WeekStart: weekStart, ResetsAt: WeekEnd(weekStart)}
	if privileged {
		st.Eligibility = unlimited()
		g.metrics.incCheck(st.Eligibility)
		return st, nil
	}

	count, err := g.usage(ctx, id, weekStart)
	if err != nil {
		return Status{}, err
	}
	st.Eligibility = g.eligibility(count)
	st.UsedThisWeek = count
	g.metrics.incCheck(st.Eligibility)
	klog.V(1).Infof("quota: %q used %d/%d fast generations in week of %s", id, count, g.limit, weekStart.Format("2006-01-02"))
	return st, nil
}

// RecordUsage adds one use to the account's counter for the current week
// and returns the new count. It does not enforce the limit: by the time it
// is called the work has been done. Callers must not record usage for
// privileged accounts.
func (g *Governor) RecordUsage(ctx context.Context, id string) (int, error) {
	weekStart := g.CurrentWeek()
	var count int
	err := g.withRetry(ctx, "increment", id, func() error {
		var err error
		count, err = g.us.IncrementUsage(ctx, id, weekStart)
		return err
	})
	g.metrics.incRecorded(err)
	if err != nil {
		return 0, fmt.Errorf("recording fast mode usage of %q: %w", id, err)
	}
	if count > g.limit {
		klog.Infof("quota: %q recorded %d fast generations against a limit of %d in week of %s", id, count, g.limit, weekStart.Format("2006-01-02"))
	}
	return count, nil
}

// Exhausted returns the error to report when an account that is not
// eligible demands fast mode.
func (g *Governor) Exhausted(st Status) *ExhaustedError {
	return &ExhaustedError{
		Remaining:   st.RemainingFastGenerations,
		WeeklyLimit: st.WeeklyLimit,
		ResetsAt:    st.ResetsAt,
	}
}
