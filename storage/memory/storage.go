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

package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pixelmill/fastquota/storage"
)

const degree = 8

// item is a key and its value in the store. Values are either *storage.Account
// or *usage.
type item struct {
	k string
	v interface{}
}

func less(a, b item) bool {
	return a.k < b.k
}

type usage struct {
	count int
}

func accountKey(id string) item {
	return item{k: fmt.Sprintf("/account/%s", id)}
}

func usageKey(id string, weekStart time.Time) item {
	return item{k: fmt.Sprintf("/usage/%s/%s", id, storage.WeekKey(weekStart).Format("2006-01-02"))}
}

// Store implements storage.AccountStorage and storage.UsageStorage.
type Store struct {
	mu    sync.Mutex
	store *btree.BTreeG[item]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{store: btree.NewG(degree, less)}
}

func (s *Store) account(id string) (*storage.Account, bool) {
	i, ok := s.store.Get(accountKey(id))
	if !ok {
		return nil, false
	}
	return i.v.(*storage.Account), true
}

// CreateAccount implements storage.AccountStorage.
func (s *Store) CreateAccount(ctx context.Context, acct storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.account(acct.ID); ok {
		return storage.ErrAccountExists
	}
	k := accountKey(acct.ID)
	k.v = &acct
	s.store.ReplaceOrInsert(k)
	return nil
}

// GetAccount implements storage.AccountStorage.
func (s *Store) GetAccount(ctx context.Context, id string) (*storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.account(id)
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	ret := *acct
	return &ret, nil
}

// AddCredits implements storage.AccountStorage.
func (s *Store) AddCredits(ctx context.Context, id string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.account(id)
	if !ok {
		return 0, storage.ErrAccountNotFound
	}
	if amount > math.MaxInt64-acct.Credits {
		return 0, storage.ErrBalanceOverflow
	}
	acct.Credits += amount
	return acct.Credits, nil
}

// SpendCredits implements storage.AccountStorage.
func (s *Store) SpendCredits(ctx context.Context, id string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.account(id)
	if !ok {
		return 0, storage.ErrAccountNotFound
	}
	if acct.Credits < amount {
		return 0, &storage.InsufficientBalanceError{AccountID: id, Balance: acct.Credits, Requested: amount}
	}
	acct.Credits -= amount
	return acct.Credits, nil
}

func (s *Store) usage(id string, weekStart time.Time) *usage {
	k := usageKey(id, weekStart)
	if i, ok := s.store.Get(k); ok {
		return i.v.(*usage)
	}
	u := &usage{}
	k.v = u
	s.store.ReplaceOrInsert(k)
	return u
}

// EnsureUsage implements storage.UsageStorage.
func (s *Store) EnsureUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage(id, weekStart).count, nil
}

// IncrementUsage implements storage.UsageStorage.
func (s *Store) IncrementUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage(id, weekStart)
	u.count++
	return u.count, nil
}

// UsageRecords returns the number of stored (account, week) counters for
// id.
func (s *Store) UsageRecords(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := fmt.Sprintf("/usage/%s/", id)
	n := 0
	s.store.AscendGreaterOrEqual(item{k: prefix}, func(i item) bool {
		if len(i.k) < len(prefix) || i.k[:len(prefix)] != prefix {
			return false
		}
		n++
		return true
	})
	return n
}
