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

package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/pixelmill/fastquota/ledger"
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	"github.com/pixelmill/fastquota/storage/memory"
	"github.com/pixelmill/fastquota/util/clock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var wednesday = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

// recorder is a Processor that remembers its jobs.
type recorder struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (r *recorder) Process(_ context.Context, job Job) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if r.err != nil {
		return nil, r.err
	}
	return append([]byte("out:"), job.Input...), nil
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type env struct {
	store  *memory.Store
	ts     *clock.FakeTimeSource
	ledger *ledger.Ledger
	gov    *quota.Governor
}

func newEnv(t *testing.T, accounts ...storage.Account) *env {
	t.Helper()
	e := &env{store: memory.NewStore(), ts: clock.NewFake(wednesday)}
	for _, a := range accounts {
		if err := e.store.CreateAccount(context.Background(), a); err != nil {
			t.Fatalf("CreateAccount(%v): %v", a.ID, err)
		}
	}
	e.ledger = ledger.New(e.store, ledger.Options{})
	e.gov = quota.NewGovernor(e.store, quota.Options{TimeSource: e.ts})
	return e
}

func (e *env) runner(p Processor, opts Options) *Runner {
	opts.TimeSource = e.ts
	if opts.MetricFactory == nil {
		opts.MetricFactory = monitoring.InertMetricFactory{}
	}
	return New(e.ledger, e.gov, p, opts)
}

func (e *env) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("Balance(%v): %v", id, err)
	}
	return b
}

func TestRunFastThenStandard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 5})
	p := &recorder{}
	r := e.runner(p, Options{})

	for i := 1; i <= quota.WeeklyLimit; i++ {
		out, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte{byte(i)}})
		if err != nil {
			t.Fatalf("Run() #%d: %v", i, err)
		}
		want := &Outcome{
			Output:   []byte{'o', 'u', 't', ':', byte(i)},
			FastMode: true,
			Credits:  int64(5 - i),
			Eligibility: quota.Eligibility{
				CanUse:                   true,
				RemainingFastGenerations: quota.WeeklyLimit - i + 1,
				WeeklyLimit:              quota.WeeklyLimit,
			},
			UsedThisWeek: i,
		}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("Run() #%d diff (-want +got):\n%s", i, diff)
		}
	}

	// The allowance is used up, so the next run is delayed.
	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("slow")})
		done <- result{out, err}
	}()
	if !e.ts.WaitForTimer(5 * time.Second) {
		t.Fatal("standard mode run did not wait")
	}
	select {
	case <-done:
		t.Fatal("standard mode run finished before its delay")
	default:
	}
	e.ts.Advance(DefaultStandardDelay)
	res := <-done
	if res.err != nil {
		t.Fatalf("Run() standard: %v", res.err)
	}
	if res.out.FastMode || res.out.Credits != 1 || res.out.UsedThisWeek != quota.WeeklyLimit {
		t.Errorf("Run() standard=%+v, want standard mode with 1 credit and %d uses", res.out, quota.WeeklyLimit)
	}

	var modes []bool
	for _, j := range p.jobs {
		modes = append(modes, j.Fast)
	}
	if diff := cmp.Diff([]bool{true, true, true, false}, modes); diff != "" {
		t.Errorf("job modes diff (-want +got):\n%s", diff)
	}
	if got := r.metrics.operations.Value(modeFast, resultOK); got != 3 {
		t.Errorf("orchestrator_operations{fast,ok}=%v, want 3", got)
	}
	if got := r.metrics.operations.Value(modeStandard, resultOK); got != 1 {
		t.Errorf("orchestrator_operations{standard,ok}=%v, want 1", got)
	}
	if n, sum := r.metrics.latency.Info(modeStandard); n != 1 || sum != DefaultStandardDelay.Seconds() {
		t.Errorf("orchestrator_operation_seconds{standard}=(%d, %v), want (1, %v)", n, sum, DefaultStandardDelay.Seconds())
	}
}

func TestRunInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 0})
	p := ProcessorFunc(func(context.Context, Job) ([]byte, error) {
		t.Error("processor called without credits")
		return nil, nil
	})
	r := e.runner(p, Options{})

	_, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("x")})
	ib, ok := storage.AsInsufficientBalance(err)
	if !ok {
		t.Fatalf("Run()=%v, want InsufficientBalanceError", err)
	}
	if ib.Balance != 0 || ib.Requested != OperationCost {
		t.Errorf("InsufficientBalanceError=%+v, want balance 0 requested %d", ib, OperationCost)
	}
	if got := e.store.UsageRecords("alice"); got != 1 {
		t.Errorf("UsageRecords()=%d, want 1", got)
	}
	st, err := e.gov.GetStatus(ctx, "alice", false)
	if err != nil || st.UsedThisWeek != 0 {
		t.Errorf("GetStatus()=%+v, %v, want no usage", st, err)
	}
}

func TestRunUnknownAccount(t *testing.T) {
	e := newEnv(t)
	r := e.runner(&recorder{}, Options{})
	if _, err := r.Run(context.Background(), Request{AccountID: "nobody"}); status.Code(err) != codes.NotFound {
		t.Errorf("Run()=%v, want code %v", err, codes.NotFound)
	}
}

func TestRunRequireFast(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 10})
	for i := 0; i < quota.WeeklyLimit; i++ {
		if _, err := e.gov.RecordUsage(ctx, "alice"); err != nil {
			t.Fatalf("RecordUsage(): %v", err)
		}
	}
	p := &recorder{}
	r := e.runner(p, Options{})

	_, err := r.Run(ctx, Request{AccountID: "alice", RequireFast: true})
	var ee *quota.ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("Run()=%v, want ExhaustedError", err)
	}
	want := &quota.ExhaustedError{Remaining: 0, WeeklyLimit: quota.WeeklyLimit, ResetsAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)}
	if diff := cmp.Diff(want, ee); diff != "" {
		t.Errorf("ExhaustedError diff (-want +got):\n%s", diff)
	}
	if got := e.balance(t, "alice"); got != 10 {
		t.Errorf("balance=%d, want 10", got)
	}
	if p.calls() != 0 {
		t.Errorf("processor called %d times", p.calls())
	}
}

func TestRunPrivileged(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "vip", Credits: 10, Privileged: true})
	p := &recorder{}
	r := e.runner(p, Options{})

	for i := 0; i < 2*quota.WeeklyLimit; i++ {
		out, err := r.Run(ctx, Request{AccountID: "vip", Privileged: true, Input: []byte("x"), RequireFast: true})
		if err != nil {
			t.Fatalf("Run(): %v", err)
		}
		if !out.FastMode || out.Eligibility.RemainingFastGenerations != quota.Unlimited || out.UsedThisWeek != 0 {
			t.Errorf("Run()=%+v, want unlimited fast mode", out)
		}
	}
	if got := e.store.UsageRecords("vip"); got != 0 {
		t.Errorf("UsageRecords()=%d, want 0", got)
	}
	if got := e.balance(t, "vip"); got != 10-2*quota.WeeklyLimit {
		t.Errorf("balance=%d, want %d", got, 10-2*quota.WeeklyLimit)
	}
}

func TestRunProcessorFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 3})
	p := &recorder{err: errors.New("provider exploded")}
	r := e.runner(p, Options{})

	_, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("x")})
	if got := status.Code(err); got != codes.Unavailable {
		t.Errorf("Run()=%v, want code %v", err, codes.Unavailable)
	}
	// No refund, and no usage for work that didn't happen.
	if got := e.balance(t, "alice"); got != 2 {
		t.Errorf("balance=%d, want 2", got)
	}
	st, err := e.gov.GetStatus(ctx, "alice", false)
	if err != nil || st.UsedThisWeek != 0 {
		t.Errorf("GetStatus()=%+v, %v, want no usage", st, err)
	}
	if got := r.metrics.operations.Value(modeFast, resultFailed); got != 1 {
		t.Errorf("orchestrator_operations{fast,failed}=%v, want 1", got)
	}
}

func TestRunTimeout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 1})
	p := ProcessorFunc(func(ctx context.Context, _ Job) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := e.runner(p, Options{Timeout: 10 * time.Millisecond})

	_, err := r.Run(ctx, Request{AccountID: "alice"})
	if got := status.Code(err); got != codes.DeadlineExceeded {
		t.Errorf("Run()=%v, want code %v", err, codes.DeadlineExceeded)
	}
	if got := e.balance(t, "alice"); got != 0 {
		t.Errorf("balance=%d, want 0", got)
	}
}

func TestRunCanceledDuringDelay(t *testing.T) {
	e := newEnv(t, storage.Account{ID: "alice", Credits: 5})
	for i := 0; i < quota.WeeklyLimit; i++ {
		if _, err := e.gov.RecordUsage(context.Background(), "alice"); err != nil {
			t.Fatalf("RecordUsage(): %v", err)
		}
	}
	p := &recorder{}
	r := e.runner(p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, Request{AccountID: "alice"})
		done <- err
	}()
	if !e.ts.WaitForTimer(5 * time.Second) {
		t.Fatal("standard mode run did not wait")
	}
	cancel()
	if err := <-done; status.Code(err) != codes.Canceled {
		t.Errorf("Run()=%v, want code %v", err, codes.Canceled)
	}
	if p.calls() != 0 {
		t.Errorf("processor called %d times", p.calls())
	}
	if got := e.balance(t, "alice"); got != 4 {
		t.Errorf("balance=%d, want 4", got)
	}
}

func TestRunNoDelay(t *testing.T) {
	e := newEnv(t, storage.Account{ID: "alice", Credits: 5})
	for i := 0; i < quota.WeeklyLimit; i++ {
		if _, err := e.gov.RecordUsage(context.Background(), "alice"); err != nil {
			t.Fatalf("RecordUsage(): %v", err)
		}
	}
	r := e.runner(&recorder{}, Options{StandardDelay: -1})
	out, err := r.Run(context.Background(), Request{AccountID: "alice"})
	if err != nil || out.FastMode {
		t.Fatalf("Run()=%+v, %v, want standard mode", out, err)
	}
	if e.ts.PendingTimers() != 0 {
		t.Errorf("PendingTimers()=%d, want 0", e.ts.PendingTimers())
	}
}

func TestRunCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 5})
	cache, err := NewResultCache(0)
	if err != nil {
		t.Fatalf("NewResultCache(): %v", err)
	}
	p := &recorder{}
	r := e.runner(p, Options{Cache: cache})

	first, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("same")})
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	second, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("same")})
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if !second.CacheHit || !bytes.Equal(first.Output, second.Output) {
		t.Errorf("second Run()=%+v, want cache hit with %q", second, first.Output)
	}
	if p.calls() != 1 {
		t.Errorf("processor called %d times, want 1", p.calls())
	}
	// A cache hit still costs a credit but no fast mode use.
	if got := e.balance(t, "alice"); got != 3 {
		t.Errorf("balance=%d, want 3", got)
	}
	st, err := e.gov.GetStatus(ctx, "alice", false)
	if err != nil || st.UsedThisWeek != 1 {
		t.Errorf("GetStatus()=%+v, %v, want 1 use", st, err)
	}
}

func TestRunUsageNotRecorded(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := memory.NewStore()
	if err := store.CreateAccount(ctx, storage.Account{ID: "alice", Credits: 1}); err != nil {
		t.Fatalf("CreateAccount(): %v", err)
	}
	us := storage.NewMockUsageStorage(ctrl)
	us.EXPECT().EnsureUsage(gomock.Any(), "alice", gomock.Any()).Return(0, nil)
	us.EXPECT().IncrementUsage(gomock.Any(), "alice", gomock.Any()).Return(0, errors.New("disk full"))

	ts := clock.NewFake(wednesday)
	r := New(ledger.New(store, ledger.Options{}), quota.NewGovernor(us, quota.Options{TimeSource: ts}), &recorder{}, Options{
		TimeSource:    ts,
		MetricFactory: monitoring.InertMetricFactory{},
	})
	out, err := r.Run(ctx, Request{AccountID: "alice", Input: []byte("x")})
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if string(out.Output) != "out:x" || out.UsedThisWeek != 0 {
		t.Errorf("Run()=%+v", out)
	}
	if got := r.metrics.operations.Value(modeFast, resultUsageNotRecorded); got != 1 {
		t.Errorf("orchestrator_operations{fast,usage_not_recorded}=%v, want 1", got)
	}
}

func TestConcurrentRuns(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, storage.Account{ID: "alice", Credits: 4})
	p := &recorder{}
	r := e.runner(p, Options{StandardDelay: -1})

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, refused int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Run(ctx, Request{AccountID: "alice"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if _, ok := storage.AsInsufficientBalance(err); ok {
				refused++
			} else {
				t.Errorf("Run(): %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 4 || refused != n-4 {
		t.Errorf("succeeded=%d refused=%d, want 4 and %d", succeeded, refused, n-4)
	}
	if p.calls() != 4 {
		t.Errorf("processor called %d times, want 4", p.calls())
	}
	if got := e.balance(t, "alice"); got != 0 {
		t.Errorf("balance=%d, want 0", got)
	}
	// Racing checks may each see an allowance left, so usage can pass the
	// limit by the number of concurrent winners but never exceeds the work
	// done.
	st, err := e.gov.GetStatus(ctx, "alice", false)
	if err != nil {
		t.Fatalf("GetStatus(): %v", err)
	}
	if st.UsedThisWeek < 1 || st.UsedThisWeek > 4 {
		t.Errorf("UsedThisWeek=%d, want between 1 and 4", st.UsedThisWeek)
	}
}

func TestHTTPProcessor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == "bad" {
			http.Error(w, "no thanks", http.StatusBadGateway)
			return
		}
		w.Write([]byte(r.Header.Get(FastModeHeader) + ":" + string(body)))
	}))
	defer srv.Close()

	p := &HTTPProcessor{URL: srv.URL, Client: srv.Client()}
	ctx := context.Background()
	out, err := p.Process(ctx, Job{Input: []byte("hello"), Fast: true})
	if err != nil {
		t.Fatalf("Process(): %v", err)
	}
	if got, want := string(out), "true:hello"; got != want {
		t.Errorf("Process()=%q, want %q", got, want)
	}
	if out, err := p.Process(ctx, Job{Input: []byte("bad")}); err == nil {
		t.Errorf("Process()=%q, want error", out)
	}
}

func TestResultCacheEviction(t *testing.T) {
	c, err := NewResultCache(2)
	if err != nil {
		t.Fatalf("NewResultCache(): %v", err)
	}
	c.Add([]byte("a"), []byte("1"))
	c.Add([]byte("b"), []byte("2"))
	if _, ok := c.Get([]byte("a")); !ok {
		t.Fatal("a evicted early")
	}
	c.Add([]byte("c"), []byte("3"))
	if _, ok := c.Get([]byte("b")); ok {
		t.Error("least recently used entry b not evicted")
	}
	if got, ok := c.Get([]byte("a")); !ok || string(got) != "1" {
		t.Errorf("Get(a)=%q, %v, want 1, true", got, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len()=%d, want 2", c.Len())
	}
}
