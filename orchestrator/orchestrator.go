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

// Package orchestrator runs paid external operations on behalf of accounts.
//
// A run checks fast mode eligibility, debits one credit, performs the
// external operation and, only once it has succeeded in fast mode for a
// standard account, records fast mode usage. The debit happens before the
// external work and is not refunded if that work fails or times out.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/pixelmill/fastquota/ledger"
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	"github.com/pixelmill/fastquota/util/clock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

const (
	// DefaultTimeout bounds the external operation.
	DefaultTimeout = 60 * time.Second
	// DefaultStandardDelay is the latency penalty of standard mode.
	DefaultStandardDelay = 10 * time.Second
	// OperationCost is the number of credits debited per operation.
	OperationCost = 1
)

// Options configures a Runner.
type Options struct {
	// Timeout bounds the external operation. Defaults to DefaultTimeout.
	Timeout time.Duration
	// StandardDelay is waited before standard mode operations. Zero selects
	// DefaultStandardDelay; a negative value disables the delay.
	StandardDelay time.Duration
	// TimeSource defaults to clock.System.
	TimeSource clock.TimeSource
	// Cache, if set, short-circuits repeated inputs.
	Cache         *ResultCache
	MetricFactory monitoring.MetricFactory
}

// Request asks for one operation.
type Request struct {
	AccountID  string
	Privileged bool
	Input      []byte
	// RequireFast fails the request instead of falling back to standard mode
	// when the weekly allowance is used up.
	RequireFast bool
}

// Outcome describes a completed operation.
type Outcome struct {
	Output   []byte
	FastMode bool
	// Credits is the balance left after the debit.
	Credits int64
	// Eligibility is the fast mode eligibility the mode was chosen from.
	Eligibility quota.Eligibility
	// UsedThisWeek counts fast mode uses this week, including this one if
	// it was recorded. Always 0 for privileged accounts.
	UsedThisWeek int
	CacheHit     bool
}

// Runner ties the ledger, the quota governor and a Processor together.
type Runner struct {
	ledger    *ledger.Ledger
	governor  *quota.Governor
	processor Processor
	opts      Options
	metrics   runnerMetrics
}

// New returns a Runner.
func New(l *ledger.Ledger, g *quota.Governor, p Processor, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.StandardDelay == 0 {
		opts.StandardDelay = DefaultStandardDelay
	}
	if opts.TimeSource == nil {
		opts.TimeSource = clock.System
	}
	return &Runner{
		ledger:    l,
		governor:  g,
		processor: p,
		opts:      opts,
		metrics:   newRunnerMetrics(opts.MetricFactory),
	}
}

// Run performs one operation for req.AccountID.
//
// It returns a *storage.InsufficientBalanceError without doing any work if
// the account cannot pay, and a *quota.ExhaustedError before debiting if
// req.RequireFast is set and no fast mode allowance is left. Once the credit
// has been debited, failures of the external operation are returned as
// codes.DeadlineExceeded or codes.Unavailable errors and the credit stays
// spent.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	st, err := r.governor.GetStatus(ctx, req.AccountID, req.Privileged)
	if err != nil {
		r.metrics.operations.Inc(modeStandard, resultError)
		return nil, err
	}
	fast := st.CanUse
	m := mode(fast)
	if req.RequireFast && !fast {
		r.metrics.operations.Inc(m, resultQuotaExhausted)
		return nil, r.governor.Exhausted(st)
	}

	credits, err := r.ledger.Decrement(ctx, req.AccountID, OperationCost)
	if err != nil {
		if _, ok := storage.AsInsufficientBalance(err); ok {
			r.metrics.operations.Inc(m, resultInsufficientBalance)
		} else {
			r.metrics.operations.Inc(m, resultError)
		}
		return nil, err
	}
	out := &Outcome{
		FastMode:     fast,
		Credits:      credits,
		Eligibility:  st.Eligibility,
		UsedThisWeek: st.UsedThisWeek,
	}

	if r.opts.Cache != nil {
		if cached, ok := r.opts.Cache.Get(req.Input); ok {
			klog.V(1).Infof("orchestrator: %q served from cache", req.AccountID)
			r.metrics.operations.Inc(m, resultCached)
			out.Output = cached
			out.CacheHit = true
			return out, nil
		}
	}

	start := r.opts.TimeSource.Now()
	output, err := r.process(ctx, req, fast)
	r.metrics.latency.Observe(clock.SecondsSince(r.opts.TimeSource, start), m)
	if err != nil {
		klog.Warningf("orchestrator: %s operation for %q failed after debit, %d credits left: %v", m, req.AccountID, credits, err)
		r.metrics.operations.Inc(m, resultFailed)
		return nil, err
	}
	out.Output = output
	if r.opts.Cache != nil {
		r.opts.Cache.Add(req.Input, output)
	}

	if fast && !req.Privileged {
		used, err := r.governor.RecordUsage(ctx, req.AccountID)
		if err != nil {
			// The work was done and paid for, so the caller still gets it.
			klog.Errorf("orchestrator: fast mode usage of %q not recorded: %v", req.AccountID, err)
			r.metrics.operations.Inc(m, resultUsageNotRecorded)
			return out, nil
		}
		out.UsedThisWeek = used
	}
	r.metrics.operations.Inc(m, resultOK)
	return out, nil
}

// process waits out the standard mode delay and runs the processor under
// the operation timeout.
func (r *Runner) process(ctx context.Context, req Request, fast bool) ([]byte, error) {
	if !fast && r.opts.StandardDelay > 0 {
		if err := clock.SleepSource(ctx, r.opts.StandardDelay, r.opts.TimeSource); err != nil {
			return nil, status.FromContextError(err).Err()
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	output, err := r.processor.Process(opCtx, Job{
		AccountID:  req.AccountID,
		Privileged: req.Privileged,
		Input:      req.Input,
		Fast:       fast,
	})
	switch {
	case err == nil:
		return output, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return nil, status.Errorf(codes.DeadlineExceeded, "external operation timed out: %v", err)
	case errors.Is(err, context.Canceled):
		return nil, status.Errorf(codes.Canceled, "external operation canceled: %v", err)
	default:
		return nil, status.Errorf(codes.Unavailable, "external operation failed: %v", err)
	}
}
