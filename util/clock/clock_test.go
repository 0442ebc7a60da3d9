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

package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

func checkNotFiring(t *testing.T, timer Timer) {
	t.Helper()
	select {
	case tm := <-timer.Chan():
		t.Errorf("Timer unexpectedly fired at %v", tm)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestFakeTimerFiresOnce(t *testing.T) {
	ts := NewFake(base)
	timer := ts.NewTimer(10 * time.Second)

	ts.Advance(9 * time.Second)
	checkNotFiring(t, timer)

	ts.Advance(time.Second)
	if got, want := <-timer.Chan(), base.Add(10*time.Second); !got.Equal(want) {
		t.Errorf("Timer fired at %v, want %v", got, want)
	}
	ts.Advance(time.Hour)
	checkNotFiring(t, timer)
	if n := ts.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers()=%d, want 0", n)
	}
}

func TestFakeTimerStop(t *testing.T) {
	ts := NewFake(base)
	timer := ts.NewTimer(10 * time.Second)
	if !timer.Stop() {
		t.Error("Stop()=false before firing, want true")
	}
	if timer.Stop() {
		t.Error("second Stop()=true, want false")
	}
	ts.Advance(time.Minute)
	checkNotFiring(t, timer)
}

func TestFakeTimerZeroDuration(t *testing.T) {
	ts := NewFake(base)
	timer := ts.NewTimer(0)
	select {
	case <-timer.Chan():
	case <-time.After(time.Second):
		t.Fatal("zero-duration timer did not fire")
	}
}

func TestSleepSource(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		advance time.Duration
		cancel  bool
		wantErr error
	}{
		{desc: "elapsed", advance: 10 * time.Second},
		{desc: "overshoot", advance: time.Hour},
		{desc: "canceled", cancel: true, wantErr: context.Canceled},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			ts := NewFake(base)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- SleepSource(ctx, 10*time.Second, ts) }()

			if !ts.WaitForTimer(5 * time.Second) {
				t.Fatal("SleepSource never created a timer")
			}
			if tc.cancel {
				cancel()
			} else {
				ts.Advance(tc.advance)
			}
			if err := <-done; !errors.Is(err, tc.wantErr) {
				t.Errorf("SleepSource()=%v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := SleepContext(ctx, time.Hour); err != context.DeadlineExceeded {
		t.Errorf("SleepContext()=%v, want %v", err, context.DeadlineExceeded)
	}
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Errorf("SleepContext(0)=%v, want nil", err)
	}
}
