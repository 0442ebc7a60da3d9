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

// Package redisqm keeps weekly fast mode usage counters in Redis.
//
// Counters are only as durable as the Redis deployment: without persistence
// configured, a restart resets every account's allowance.
package redisqm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/pixelmill/fastquota/storage"
)

// RedisClient is the subset of the Redis client API used by Store. It is
// satisfied by *redis.Client, *redis.ClusterClient and *redis.Ring.
type RedisClient interface {
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(script string) *redis.StringCmd
}

const (
	// ensureSrc creates the counter at zero unless it exists, then reads it.
	// ARGV[1] is the TTL in seconds, or 0 for none.
	ensureSrc = `
local ttl = tonumber(ARGV[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], 0, "EX", ttl, "NX")
else
  redis.call("SET", KEYS[1], 0, "NX")
end
return tonumber(redis.call("GET", KEYS[1]))
`

	// incrementSrc bumps the counter, creating it if needed. ARGV[1] is as
	// for ensureSrc.
	incrementSrc = `
local n = redis.call("INCR", KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 and redis.call("TTL", KEYS[1]) < 0 then
  redis.call("EXPIRE", KEYS[1], ttl)
end
return n
`
)

var (
	ensureScript    = redis.NewScript(ensureSrc)
	incrementScript = redis.NewScript(incrementSrc)
)

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key, which is useful on a shared Redis
	// cluster.
	Prefix string
	// TTL expires counters this long after they are created. Zero keeps them
	// forever. It should comfortably exceed a week.
	TTL time.Duration
}

// Store is a storage.UsageStorage backed by Redis. Each operation is a
// single Lua script, so concurrent callers never lose an increment.
type Store struct {
	c    RedisClient
	opts Options
}

var _ storage.UsageStorage = &Store{}

// New returns a Store that uses the provided client.
func New(client RedisClient, opts Options) *Store {
	return &Store{c: client, opts: opts}
}

// Load preloads the Lua scripts so later calls only send their hashes.
// Calling it is optional.
func (s *Store) Load(ctx context.Context) error {
	client := withClientContext(ctx, s.c)
	if err := ensureScript.Load(client).Err(); err != nil {
		return toStatus(err, true)
	}
	return toStatus(incrementScript.Load(client).Err(), true)
}

// EnsureUsage implements storage.UsageStorage.
func (s *Store) EnsureUsage(ctx context.Context, accountID string, weekStart time.Time) (int, error) {
	return s.run(ctx, ensureScript, true, accountID, weekStart)
}

// IncrementUsage implements storage.UsageStorage.
func (s *Store) IncrementUsage(ctx context.Context, accountID string, weekStart time.Time) (int, error) {
	return s.run(ctx, incrementScript, false, accountID, weekStart)
}

// run executes script against the account's counter. idempotent tells
// whether a repeat of an interrupted call is harmless.
func (s *Store) run(ctx context.Context, script *redis.Script, idempotent bool, accountID string, weekStart time.Time) (int, error) {
	client := withClientContext(ctx, s.c)
	resp := script.Run(client, []string{s.key(accountID, weekStart)}, int64(s.opts.TTL/time.Second))
	result, err := resp.Result()
	if err != nil {
		return 0, toStatus(err, idempotent)
	}
	n, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("redisqm: invalid return type %T (expected int64)", result)
	}
	return int(n), nil
}

// key returns the counter key for an account's week. The account part is a
// Redis Cluster hash tag, so all of one account's weeks share a slot.
func (s *Store) key(accountID string, weekStart time.Time) string {
	return fmt.Sprintf("{%sfastmode/%s}.%s", s.opts.Prefix, accountID, storage.WeekKey(weekStart).Format("2006-01-02"))
}

// withClientContext binds ctx to the client. The WithContext methods of the
// Redis clients return concrete types, so they can't be part of RedisClient.
func withClientContext(ctx context.Context, client RedisClient) RedisClient {
	type withContextable interface {
		WithContext(context.Context) RedisClient
	}

	switch c := client.(type) {
	case *redis.Client:
		return c.WithContext(ctx)
	case *redis.ClusterClient:
		return c.WithContext(ctx)
	case *redis.Ring:
		return c.WithContext(ctx)
	case withContextable:
		return c.WithContext(ctx)
	}
	return client
}
