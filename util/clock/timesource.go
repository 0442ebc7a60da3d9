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

// Package clock lets code read the current time and wait on timers through
// an interface that tests can drive by hand.
package clock

import (
	"sync"
	"time"
)

// System is the TimeSource backed by the wall clock.
var System TimeSource = systemTimeSource{}

// TimeSource provides the current time and timers measured against it.
type TimeSource interface {
	// Now returns the current time as seen by this TimeSource.
	Now() time.Time
	// NewTimer creates a timer that fires after the specified duration.
	NewTimer(d time.Duration) Timer
}

// SecondsSince returns the seconds elapsed since t, as measured by ts.
func SecondsSince(ts TimeSource, t time.Time) float64 {
	return ts.Now().Sub(t).Seconds()
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time {
	return time.Now()
}

func (systemTimeSource) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

// FakeTimeSource reports a time that only moves when told to. Timers created
// from it fire once the reported time reaches their deadline. For tests only.
type FakeTimeSource struct {
	mu     sync.Mutex
	now    time.Time
	timers map[int]*fakeTimer
	nextID int
	// added is signalled, without blocking, every time a timer is created.
	added chan struct{}
}

// NewFake creates a FakeTimeSource that reports t.
func NewFake(t time.Time) *FakeTimeSource {
	return &FakeTimeSource{
		now:    t,
		timers: make(map[int]*fakeTimer),
		added:  make(chan struct{}, 1),
	}
}

// Now returns the time the fake is currently set to.
func (f *FakeTimeSource) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer returns a Timer that fires when the fake reaches Now()+d.
func (f *FakeTimeSource) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	timer := newFakeTimer(f, id, f.now.Add(d))
	if !timer.tryFire(f.now) {
		f.timers[id] = timer
	}
	select {
	case f.added <- struct{}{}:
	default:
	}
	return timer
}

// Set moves the fake to t and fires every timer whose deadline has passed.
func (f *FakeTimeSource) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
	for id, timer := range f.timers {
		if timer.tryFire(t) {
			delete(f.timers, id)
		}
	}
}

// Advance moves the fake forward by d.
func (f *FakeTimeSource) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// PendingTimers returns the number of timers that have not fired or been
// stopped yet.
func (f *FakeTimeSource) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// WaitForTimer blocks until at least one timer is pending, or until the real
// time limit passes. It reports whether a pending timer was seen.
func (f *FakeTimeSource) WaitForTimer(limit time.Duration) bool {
	deadline := time.After(limit)
	for {
		if f.PendingTimers() > 0 {
			return true
		}
		select {
		case <-f.added:
		case <-deadline:
			return f.PendingTimers() > 0
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *FakeTimeSource) unsubscribe(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[id]
	delete(f.timers, id)
	return ok
}
