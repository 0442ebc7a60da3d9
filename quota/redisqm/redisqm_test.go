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

package redisqm

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/go-cmp/cmp"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var weekStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// fakeRedis interprets the two scripts used by Store against a map. EvalSha
// only succeeds for loaded scripts, like a real server.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]int64
	ttls    map[string]int64
	loaded  map[string]bool
	evals   int
	ctx     context.Context
	// failErr is returned instead of running a script.
	failErr error
	// replyErr is returned after a script has run, as when the reply is lost.
	replyErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: make(map[string]int64),
		ttls:   make(map[string]int64),
		loaded: make(map[string]bool),
	}
}

func (f *fakeRedis) WithContext(ctx context.Context) RedisClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = ctx
	return f
}

func (f *fakeRedis) exec(src string, keys []string, args []interface{}) *redis.Cmd {
	if f.failErr != nil {
		return redis.NewCmdResult(nil, f.failErr)
	}
	key := keys[0]
	ttl := args[0].(int64)
	switch src {
	case ensureSrc:
		if _, ok := f.values[key]; !ok {
			f.values[key] = 0
			if ttl > 0 {
				f.ttls[key] = ttl
			}
		}
	case incrementSrc:
		f.values[key]++
		if _, ok := f.ttls[key]; !ok && ttl > 0 {
			f.ttls[key] = ttl
		}
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("ERR unknown script"))
	}
	if f.replyErr != nil {
		return redis.NewCmdResult(nil, f.replyErr)
	}
	return redis.NewCmdResult(f.values[key], nil)
}

func (f *fakeRedis) Eval(script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	return f.exec(script, keys, args)
}

func (f *fakeRedis) EvalSha(sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range []*redis.Script{ensureScript, incrementScript} {
		if s.Hash() == sha1 && f.loaded[sha1] {
			if sha1 == ensureScript.Hash() {
				return f.exec(ensureSrc, keys, args)
			}
			return f.exec(incrementSrc, keys, args)
		}
	}
	return redis.NewCmdResult(nil, errors.New("NOSCRIPT No matching script. Please use EVAL."))
}

func (f *fakeRedis) ScriptExists(hashes ...string) *redis.BoolSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	exists := make([]bool, len(hashes))
	for i, h := range hashes {
		exists[i] = f.loaded[h]
	}
	return redis.NewBoolSliceResult(exists, nil)
}

func (f *fakeRedis) ScriptLoad(script string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	sha := redis.NewScript(script).Hash()
	f.loaded[sha] = true
	return redis.NewStringResult(sha, nil)
}

func TestKey(t *testing.T) {
	s := New(newFakeRedis(), Options{Prefix: "prod/"})
	tokyo := time.FixedZone("JST", 9*60*60)
	for _, test := range []struct {
		start time.Time
		want  string
	}{
		{start: weekStart, want: "{prod/fastmode/alice}.2026-03-02"},
		{start: time.Date(2026, 3, 9, 0, 0, 0, 0, tokyo), want: "{prod/fastmode/alice}.2026-03-09"},
	} {
		if got := s.key("alice", test.start); got != test.want {
			t.Errorf("key(%v)=%q, want %q", test.start, got, test.want)
		}
	}
}

func TestEnsureAndIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	s := New(f, Options{TTL: 14 * 24 * time.Hour})

	n, err := s.EnsureUsage(ctx, "alice", weekStart)
	if err != nil || n != 0 {
		t.Fatalf("EnsureUsage()=%d, %v, want 0, nil", n, err)
	}
	for want := 1; want <= 4; want++ {
		n, err := s.IncrementUsage(ctx, "alice", weekStart)
		if err != nil || n != want {
			t.Fatalf("IncrementUsage()=%d, %v, want %d, nil", n, err, want)
		}
	}
	if n, err := s.EnsureUsage(ctx, "alice", weekStart); err != nil || n != 4 {
		t.Errorf("EnsureUsage() after increments=%d, %v, want 4, nil", n, err)
	}
	if n, err := s.EnsureUsage(ctx, "alice", weekStart.AddDate(0, 0, 7)); err != nil || n != 0 {
		t.Errorf("EnsureUsage() next week=%d, %v, want 0, nil", n, err)
	}

	wantTTLs := map[string]int64{
		"{fastmode/alice}.2026-03-02": 14 * 24 * 60 * 60,
		"{fastmode/alice}.2026-03-09": 14 * 24 * 60 * 60,
	}
	if diff := cmp.Diff(wantTTLs, f.ttls); diff != "" {
		t.Errorf("TTLs diff (-want +got):\n%s", diff)
	}
	if f.ctx != ctx {
		t.Error("client was not bound to the call's context")
	}
}

func TestUsageTTLDefault(t *testing.T) {
	f := flag.Lookup("redis_usage_ttl")
	if f == nil {
		t.Fatal("redis_usage_ttl flag not registered")
	}
	if got, want := f.DefValue, "0s"; got != want {
		t.Errorf("redis_usage_ttl default=%q, want %q (counters kept forever)", got, want)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	s := New(f, Options{})

	if _, err := s.IncrementUsage(ctx, "alice", weekStart); err != nil {
		t.Fatalf("IncrementUsage(): %v", err)
	}
	if f.evals != 1 {
		t.Fatalf("evals=%d before Load, want 1", f.evals)
	}

	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if n, err := s.IncrementUsage(ctx, "alice", weekStart); err != nil || n != 2 {
		t.Fatalf("IncrementUsage()=%d, %v, want 2, nil", n, err)
	}
	if f.evals != 1 {
		t.Errorf("evals=%d after Load, want 1", f.evals)
	}
	if len(f.ttls) != 0 {
		t.Errorf("TTLs set with TTL disabled: %v", f.ttls)
	}
}

func TestConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeRedis(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementUsage(ctx, "alice", weekStart); err != nil {
				t.Errorf("IncrementUsage(): %v", err)
			}
		}()
	}
	wg.Wait()
	if n, err := s.EnsureUsage(ctx, "alice", weekStart); err != nil || n != 25 {
		t.Errorf("EnsureUsage()=%d, %v, want 25, nil", n, err)
	}
}

// timeoutError is the net.Error a client reports when a reply does not
// arrive in time.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	for _, test := range []struct {
		desc                   string
		err                    error
		wantIncrementTransient bool
		wantEnsureTransient    bool
	}{
		{desc: "dial refused", err: refused, wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "eof", err: io.EOF, wantIncrementTransient: false, wantEnsureTransient: true},
		{desc: "timeout", err: timeoutError{}, wantIncrementTransient: false, wantEnsureTransient: true},
		{desc: "loading", err: errors.New("LOADING Redis is loading the dataset in memory"), wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "readonly replica", err: errors.New("READONLY You can't write against a read only replica."), wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "script error", err: errors.New("ERR Error running script"), wantIncrementTransient: false, wantEnsureTransient: false},
	} {
		t.Run(test.desc, func(t *testing.T) {
			f := newFakeRedis()
			f.failErr = test.err
			s := New(f, Options{})

			_, err := s.IncrementUsage(ctx, "alice", weekStart)
			if err == nil {
				t.Fatal("IncrementUsage() succeeded, want error")
			}
			if got := storage.IsTransient(err); got != test.wantIncrementTransient {
				t.Errorf("IncrementUsage(): IsTransient(%v)=%v, want %v", err, got, test.wantIncrementTransient)
			}
			if test.wantIncrementTransient && status.Code(err) != codes.Unavailable {
				t.Errorf("IncrementUsage(): status.Code(%v)=%v, want %v", err, status.Code(err), codes.Unavailable)
			}
			if !errors.Is(err, test.err) && status.Code(err) != codes.Unavailable {
				t.Errorf("IncrementUsage()=%v, want it to wrap %v", err, test.err)
			}

			_, err = s.EnsureUsage(ctx, "alice", weekStart)
			if got := storage.IsTransient(err); got != test.wantEnsureTransient {
				t.Errorf("EnsureUsage(): IsTransient(%v)=%v, want %v", err, got, test.wantEnsureTransient)
			}
		})
	}
}

func TestLostIncrementReplyIsNotRepeated(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	f.replyErr = timeoutError{}
	s := New(f, Options{})
	retry := storage.RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 2}

	attempts := 0
	err := retry.Do(ctx, func() error {
		attempts++
		_, err := s.IncrementUsage(ctx, "alice", weekStart)
		return err
	}, nil)
	if err == nil {
		t.Fatal("IncrementUsage() succeeded, want the lost reply reported")
	}
	if attempts != 1 {
		t.Errorf("IncrementUsage() attempted %d times, want 1", attempts)
	}

	f.replyErr = nil
	if n, err := s.EnsureUsage(ctx, "alice", weekStart); err != nil || n != 1 {
		t.Errorf("EnsureUsage()=%d, %v, want 1, nil", n, err)
	}
}
