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

// Package ledger maintains per-account credit balances on top of
// storage.AccountStorage.
//
// Every mutation is a single atomic storage operation, so a balance can never
// go negative and concurrent callers need no coordination. Storage failures
// that are known not to have applied are retried with backoff; a refused
// spend is a normal outcome and is never retried.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

var (
	// ErrInvalidAmount is returned for amounts that are not positive.
	ErrInvalidAmount = status.Error(codes.InvalidArgument, "amount must be a positive integer")
	// ErrInvalidAccount is returned for an empty account ID.
	ErrInvalidAccount = status.Error(codes.InvalidArgument, "account ID must not be empty")
)

const (
	opIncrement = "increment"
	opDecrement = "decrement"
	opBalance   = "balance"
)

// Options configures a Ledger.
type Options struct {
	// Retry bounds retries of transient storage failures. The zero value
	// does not retry.
	Retry storage.RetryPolicy
	// MetricFactory creates the ledger's metrics. Defaults to
	// monitoring.InertMetricFactory.
	MetricFactory monitoring.MetricFactory
}

// Ledger is the credit ledger. It is safe for concurrent use.
type Ledger struct {
	as    storage.AccountStorage
	retry storage.RetryPolicy

	mutations monitoring.Counter
	retries   monitoring.Counter
}

// New returns a Ledger that keeps balances in as.
func New(as storage.AccountStorage, opts Options) *Ledger {
	mf := opts.MetricFactory
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	return &Ledger{
		as:        as,
		retry:     opts.Retry,
		mutations: mf.NewCounter("ledger_mutations", "Number of credit ledger operations by outcome", "op", "result"),
		retries:   mf.NewCounter("ledger_retries", "Number of retried credit ledger storage calls", "op"),
	}
}

func validate(id string, amount int64) error {
	if id == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// do runs f under the retry policy and records the outcome.
func (l *Ledger) do(ctx context.Context, op, id string, f func() error) error {
	err := l.retry.Do(ctx, f, func(err error, wait time.Duration) {
		l.retries.Inc(op)
		klog.Warningf("ledger %s for %q failed, retrying in %v: %v", op, id, wait, err)
	})
	if op != opBalance {
		l.mutations.Inc(op, result(err))
	}
	if storage.IsTransient(err) {
		klog.Errorf("ledger %s for %q: giving up: %v", op, id, err)
	}
	return err
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := storage.AsInsufficientBalance(err); ok {
		return "insufficient_balance"
	}
	switch status.Code(err) {
	case codes.NotFound:
		return "not_found"
	case codes.OutOfRange:
		return "overflow"
	case codes.Aborted, codes.Unavailable:
		return "transient"
	}
	return "error"
}

// Increment adds amount credits to the account and returns the new balance.
func (l *Ledger) Increment(ctx context.Context, id string, amount int64) (int64, error) {
	if err := validate(id, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := l.do(ctx, opIncrement, id, func() error {
		var err error
		balance, err = l.as.AddCredits(ctx, id, amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("increment %q by %d: %w", id, amount, err)
	}
	klog.V(1).Infof("ledger: %q +%d -> %d", id, amount, balance)
	return balance, nil
}

// Decrement subtracts amount credits if the balance covers them and returns
// the new balance. A short balance yields a *storage.InsufficientBalanceError
// and leaves the balance untouched.
func (l *Ledger) Decrement(ctx context.Context, id string, amount int64) (int64, error) {
	if err := validate(id, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := l.do(ctx, opDecrement, id, func() error {
		var err error
		balance, err = l.as.SpendCredits(ctx, id, amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("decrement %q by %d: %w", id, amount, err)
	}
	klog.V(1).Infof("ledger: %q -%d -> %d", id, amount, balance)
	return balance, nil
}

// Balance returns the account's current balance.
func (l *Ledger) Balance(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, ErrInvalidAccount
	}
	var acct *storage.Account
	err := l.do(ctx, opBalance, id, func() error {
		var err error
		acct, err = l.as.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("balance of %q: %w", id, err)
	}
	return acct.Credits, nil
}
