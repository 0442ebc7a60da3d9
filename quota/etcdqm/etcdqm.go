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

// Package etcdqm keeps weekly fast mode usage counters in etcd.
package etcdqm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pixelmill/fastquota/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const keyPrefix = "fastmode/usage/"

// Store is a storage.UsageStorage backed by etcd.
type Store struct {
	client *clientv3.Client
}

var _ storage.UsageStorage = &Store{}

// New returns a Store using client.
func New(client *clientv3.Client) *Store {
	return &Store{client: client}
}

func usageKey(accountID string, weekStart time.Time) string {
	return fmt.Sprintf("%s%s/%s", keyPrefix, accountID, storage.WeekKey(weekStart).Format("2006-01-02"))
}

func parseCount(key string, v []byte) (int, error) {
	if len(v) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("malformed usage counter %v: %v", key, err)
	}
	return n, nil
}

// EnsureUsage implements storage.UsageStorage. The counter is created at zero
// in the same transaction that checks for it.
func (s *Store) EnsureUsage(ctx context.Context, accountID string, weekStart time.Time) (int, error) {
	key := usageKey(accountID, weekStart)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, "0")).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return 0, toStatus(err, true)
	}
	if resp.Succeeded {
		return 0, nil
	}
	kvs := resp.Responses[0].GetResponseRange().GetKvs()
	if len(kvs) == 0 {
		// Deleted between the comparison and the read.
		return 0, nil
	}
	return parseCount(key, kvs[0].Value)
}

// IncrementUsage implements storage.UsageStorage. Conflicting increments are
// rerun by the STM, so none are lost. A commit whose outcome is unknown is
// not reported as retryable.
func (s *Store) IncrementUsage(ctx context.Context, accountID string, weekStart time.Time) (int, error) {
	key := usageKey(accountID, weekStart)
	var n int
	_, err := concurrency.NewSTM(s.client, func(stm concurrency.STM) error {
		cur, err := parseCount(key, []byte(stm.Get(key)))
		if err != nil {
			return err
		}
		n = cur + 1
		stm.Put(key, strconv.Itoa(n))
		return nil
	}, concurrency.WithAbortContext(ctx), concurrency.WithIsolation(concurrency.Serializable))
	if err != nil {
		return 0, toStatus(err, false)
	}
	return n, nil
}

// Records returns how many weekly counters exist for accountID.
func (s *Store) Records(ctx context.Context, accountID string) (int64, error) {
	resp, err := s.client.Get(ctx, keyPrefix+accountID+"/", clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, toStatus(err, true)
	}
	return resp.Count, nil
}
