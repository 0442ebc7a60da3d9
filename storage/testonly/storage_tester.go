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

// Package testonly holds a conformance suite that every storage.Provider
// must pass.
package testonly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pixelmill/fastquota/storage"
	"golang.org/x/sync/errgroup"
)

// retry absorbs the conflicts SQL backends report under contention.
var retry = storage.RetryPolicy{
	MaxRetries:      20,
	InitialInterval: time.Millisecond,
	MaxInterval:     50 * time.Millisecond,
	Multiplier:      2,
	Jitter:          0.5,
}

// WeekStart is a Monday used as the current week by the suite.
var WeekStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

var idCounter int64

// NewAccountID returns an account ID that is unique within the process and
// unlikely to collide with IDs left behind by earlier runs against a shared
// database.
func NewAccountID(t *testing.T) string {
	t.Helper()
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("acct-%d-%d", time.Now().UnixNano(), n)
}

// StorageTester runs a suite of tests against a storage.Provider.
type StorageTester struct {
	// Provider is the backend under test. Tests only touch accounts they
	// create, so it may be shared with other tests.
	Provider storage.Provider
}

// RunAllTests runs all storage conformance tests.
func (tester *StorageTester) RunAllTests(t *testing.T) {
	t.Run("TestCreateAccount", tester.TestCreateAccount)
	t.Run("TestAddCredits", tester.TestAddCredits)
	t.Run("TestAddCreditsOverflow", tester.TestAddCreditsOverflow)
	t.Run("TestSpendCredits", tester.TestSpendCredits)
	t.Run("TestConcurrentSpend", tester.TestConcurrentSpend)
	t.Run("TestEnsureUsage", tester.TestEnsureUsage)
	t.Run("TestIncrementUsage", tester.TestIncrementUsage)
	t.Run("TestConcurrentUsage", tester.TestConcurrentUsage)
	t.Run("TestCheckDatabaseAccessible", tester.TestCheckDatabaseAccessible)
}

func (tester *StorageTester) createAccount(ctx context.Context, t *testing.T, credits int64, privileged bool) string {
	t.Helper()
	acct := storage.Account{ID: NewAccountID(t), Credits: credits, Privileged: privileged}
	if err := tester.Provider.AccountStorage().CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount(%+v): %v", acct, err)
	}
	return acct.ID
}

// TestCreateAccount tests account creation and lookup.
func (tester *StorageTester) TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	as := tester.Provider.AccountStorage()

	for _, privileged := range []bool{false, true} {
		want := storage.Account{ID: NewAccountID(t), Credits: 7, Privileged: privileged}
		if err := as.CreateAccount(ctx, want); err != nil {
			t.Fatalf("CreateAccount(%+v): %v", want, err)
		}
		got, err := as.GetAccount(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetAccount(%q): %v", want.ID, err)
		}
		if diff := cmp.Diff(&want, got); diff != "" {
			t.Errorf("GetAccount() diff (-want +got):\n%s", diff)
		}
		if err := as.CreateAccount(ctx, want); !errors.Is(err, storage.ErrAccountExists) {
			t.Errorf("CreateAccount(duplicate)=%v, want %v", err, storage.ErrAccountExists)
		}
	}

	if _, err := as.GetAccount(ctx, NewAccountID(t)); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Errorf("GetAccount(missing)=%v, want %v", err, storage.ErrAccountNotFound)
	}
}

// TestAddCredits tests unconditional balance increments.
func (tester *StorageTester) TestAddCredits(t *testing.T) {
	ctx := context.Background()
	as := tester.Provider.AccountStorage()
	id := tester.createAccount(ctx, t, 0, false)

	var want int64
	for _, amount := range []int64{1, 10, 250} {
		want += amount
		got, err := as.AddCredits(ctx, id, amount)
		if err != nil {
			t.Fatalf("AddCredits(%d): %v", amount, err)
		}
		if got != want {
			t.Errorf("AddCredits(%d)=%d, want %d", amount, got, want)
		}
	}
	acct, err := as.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if acct.Credits != want {
		t.Errorf("Credits=%d, want %d", acct.Credits, want)
	}

	if _, err := as.AddCredits(ctx, NewAccountID(t), 1); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Errorf("AddCredits(missing)=%v, want %v", err, storage.ErrAccountNotFound)
	}
}

// TestAddCreditsOverflow tests that a grant which would overflow the
// balance is refused and leaves the balance alone.
func (tester *StorageTester) TestAddCreditsOverflow(t *testing.T) {
	ctx := context.Background()
	as := tester.Provider.AccountStorage()
	id := tester.createAccount(ctx, t, 1, false)

	if _, err := as.AddCredits(ctx, id, math.MaxInt64); !errors.Is(err, storage.ErrBalanceOverflow) {
		t.Errorf("AddCredits(MaxInt64)=%v, want %v", err, storage.ErrBalanceOverflow)
	}
	acct, err := as.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if acct.Credits != 1 {
		t.Errorf("Credits=%d after refused grant, want 1", acct.Credits)
	}

	got, err := as.AddCredits(ctx, id, math.MaxInt64-1)
	if err != nil {
		t.Fatalf("AddCredits(MaxInt64-1): %v", err)
	}
	if got != math.MaxInt64 {
		t.Errorf("AddCredits(MaxInt64-1)=%d, want %d", got, int64(math.MaxInt64))
	}
}

// TestSpendCredits tests the conditional decrement.
func (tester *StorageTester) TestSpendCredits(t *testing.T) {
	ctx := context.Background()
	as := tester.Provider.AccountStorage()
	id := tester.createAccount(ctx, t, 5, false)

	for _, test := range []struct {
		amount      int64
		want        int64
		wantBalance int64
		wantShort   bool
	}{
		{amount: 2, want: 3},
		{amount: 4, wantShort: true, wantBalance: 3},
		{amount: 3, want: 0},
		{amount: 1, wantShort: true, wantBalance: 0},
	} {
		got, err := as.SpendCredits(ctx, id, test.amount)
		if test.wantShort {
			ib, ok := storage.AsInsufficientBalance(err)
			if !ok {
				t.Fatalf("SpendCredits(%d)=%d, %v, want InsufficientBalanceError", test.amount, got, err)
			}
			if diff := cmp.Diff(&storage.InsufficientBalanceError{AccountID: id, Balance: test.wantBalance, Requested: test.amount}, ib); diff != "" {
				t.Errorf("InsufficientBalanceError diff (-want +got):\n%s", diff)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SpendCredits(%d): %v", test.amount, err)
		}
		if got != test.want {
			t.Errorf("SpendCredits(%d)=%d, want %d", test.amount, got, test.want)
		}
	}

	acct, err := as.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if acct.Credits != 0 {
		t.Errorf("Credits=%d after failed spends, want 0", acct.Credits)
	}

	if _, err := as.SpendCredits(ctx, NewAccountID(t), 1); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Errorf("SpendCredits(missing)=%v, want %v", err, storage.ErrAccountNotFound)
	}
}

// TestConcurrentSpend checks that N concurrent spends of one credit against
// a balance of B < N succeed exactly B times.
func (tester *StorageTester) TestConcurrentSpend(t *testing.T) {
	const balance, spenders = 5, 20
	ctx := context.Background()
	as := tester.Provider.AccountStorage()
	id := tester.createAccount(ctx, t, balance, false)

	var succeeded, refused int64
	var g errgroup.Group
	for i := 0; i < spenders; i++ {
		g.Go(func() error {
			err := retry.Do(ctx, func() error {
				_, err := as.SpendCredits(ctx, id, 1)
				return err
			}, nil)
			if _, ok := storage.AsInsufficientBalance(err); ok {
				atomic.AddInt64(&refused, 1)
				return nil
			}
			if err != nil {
				return err
			}
			atomic.AddInt64(&succeeded, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("SpendCredits(): %v", err)
	}
	if succeeded != balance || refused != spenders-balance {
		t.Errorf("got %d successes and %d refusals, want %d and %d", succeeded, refused, balance, spenders-balance)
	}
	acct, err := as.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if acct.Credits != 0 {
		t.Errorf("Credits=%d, want 0", acct.Credits)
	}
}

// TestEnsureUsage tests lazy creation of usage counters.
func (tester *StorageTester) TestEnsureUsage(t *testing.T) {
	ctx := context.Background()
	us := tester.Provider.UsageStorage()
	id := NewAccountID(t)

	for i := 0; i < 2; i++ {
		got, err := us.EnsureUsage(ctx, id, WeekStart)
		if err != nil {
			t.Fatalf("EnsureUsage(): %v", err)
		}
		if got != 0 {
			t.Errorf("EnsureUsage() call %d=%d, want 0", i, got)
		}
	}
	if _, err := us.IncrementUsage(ctx, id, WeekStart); err != nil {
		t.Fatalf("IncrementUsage(): %v", err)
	}
	if got, err := us.EnsureUsage(ctx, id, WeekStart); err != nil || got != 1 {
		t.Errorf("EnsureUsage() after increment=%d, %v, want 1, nil", got, err)
	}
}

// TestIncrementUsage tests upsert increments and week separation.
func (tester *StorageTester) TestIncrementUsage(t *testing.T) {
	ctx := context.Background()
	us := tester.Provider.UsageStorage()
	id := NewAccountID(t)

	for want := 1; want <= 4; want++ {
		got, err := us.IncrementUsage(ctx, id, WeekStart)
		if err != nil {
			t.Fatalf("IncrementUsage(): %v", err)
		}
		if got != want {
			t.Errorf("IncrementUsage()=%d, want %d", got, want)
		}
	}

	nextWeek := WeekStart.AddDate(0, 0, 7)
	if got, err := us.EnsureUsage(ctx, id, nextWeek); err != nil || got != 0 {
		t.Errorf("EnsureUsage(next week)=%d, %v, want 0, nil", got, err)
	}
	if got, err := us.IncrementUsage(ctx, id, nextWeek); err != nil || got != 1 {
		t.Errorf("IncrementUsage(next week)=%d, %v, want 1, nil", got, err)
	}
	if got, err := us.EnsureUsage(ctx, id, WeekStart); err != nil || got != 4 {
		t.Errorf("EnsureUsage(this week)=%d, %v, want 4, nil", got, err)
	}
}

// TestConcurrentUsage checks that concurrent lazy creation does not fail and
// that concurrent increments are not lost.
func (tester *StorageTester) TestConcurrentUsage(t *testing.T) {
	const workers = 10
	ctx := context.Background()
	us := tester.Provider.UsageStorage()
	id := NewAccountID(t)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return retry.Do(ctx, func() error {
				n, err := us.EnsureUsage(ctx, id, WeekStart)
				if err == nil && n != 0 {
					return fmt.Errorf("EnsureUsage()=%d, want 0", n)
				}
				return err
			}, nil)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent EnsureUsage(): %v", err)
	}

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return retry.Do(ctx, func() error {
				_, err := us.IncrementUsage(ctx, id, WeekStart)
				return err
			}, nil)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent IncrementUsage(): %v", err)
	}
	if got, err := us.EnsureUsage(ctx, id, WeekStart); err != nil || got != workers {
		t.Errorf("EnsureUsage()=%d, %v, want %d, nil", got, err, workers)
	}
}

// TestCheckDatabaseAccessible tests the health probe.
func (tester *StorageTester) TestCheckDatabaseAccessible(t *testing.T) {
	if err := tester.Provider.CheckDatabaseAccessible(context.Background()); err != nil {
		t.Errorf("CheckDatabaseAccessible(): %v", err)
	}
}
