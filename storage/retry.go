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

package storage

import (
	"context"
	"flag"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	maxRetries   = flag.Int("storage_max_retries", 3, "Number of times a transient storage failure is retried before it is reported")
	retryInitial = flag.Duration("storage_retry_initial", 20*time.Millisecond, "Wait before the first retry of a transient storage failure")
	retryMax     = flag.Duration("storage_retry_max", 500*time.Millisecond, "Upper bound on the wait between retries of a transient storage failure")
)

// RetryPolicy bounds how transient storage failures are retried. Waits grow
// exponentially from InitialInterval to MaxInterval, each randomized by
// +/- Jitter of its value.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

// DefaultRetryPolicy returns the policy configured by the storage_retry
// flags.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      *maxRetries,
		InitialInterval: *retryInitial,
		MaxInterval:     *retryMax,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

// NoRetry is a policy that reports the first failure.
var NoRetry = RetryPolicy{}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns an error that IsTransient rejects,
// or the retries are used up. onRetry, if not nil, is called with the failure
// and the wait before each retry. If ctx is done while waiting, ctx.Err() is
// returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error, onRetry func(err error, wait time.Duration)) error {
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), onRetry)
}
