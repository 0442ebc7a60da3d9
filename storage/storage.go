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

// Package storage defines the durable state behind the credit ledger and the
// fast-mode quota governor, and a registry of backends that provide it.
package storage

import (
	"context"
	"time"
)

// Account is the part of an identity that the ledger and governor care
// about. Accounts are owned by the identity subsystem; storage only mutates
// Credits.
type Account struct {
	ID         string
	Credits    int64
	Privileged bool
}

// AccountStorage holds per-account credit balances. Every mutation is a
// single atomic step in the backend: a balance never goes negative and
// concurrent mutations on one account are linearizable.
type AccountStorage interface {
	// CreateAccount stores a new account. Returns ErrAccountExists if the ID
	// is taken.
	CreateAccount(ctx context.Context, acct Account) error
	// GetAccount returns the account, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)
	// AddCredits adds amount to the balance and returns the new balance.
	AddCredits(ctx context.Context, id string, amount int64) (int64, error)
	// SpendCredits subtracts amount if, and only if, the balance covers it,
	// and returns the new balance. Otherwise it returns an
	// *InsufficientBalanceError and leaves the balance untouched.
	SpendCredits(ctx context.Context, id string, amount int64) (int64, error)
}

// UsageStorage holds per-account, per-week fast-mode usage counters. A week
// is identified by the instant its window starts; backends key rows on the
// calendar date of that instant.
type UsageStorage interface {
	// EnsureUsage creates the counter for (id, weekStart) with a count of
	// zero unless it already exists, and returns the current count. Callers
	// racing to create the same counter all succeed.
	EnsureUsage(ctx context.Context, id string, weekStart time.Time) (int, error)
	// IncrementUsage adds one to the counter for (id, weekStart), creating
	// it with a count of one if absent, and returns the new count.
	IncrementUsage(ctx context.Context, id string, weekStart time.Time) (int, error)
}

// WeekKey returns the calendar date identifying the week that starts at
// weekStart, as midnight UTC of that date. Backends store this value so that
// the key does not depend on the offset of the governor's time zone.
func WeekKey(weekStart time.Time) time.Time {
	y, m, d := weekStart.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
