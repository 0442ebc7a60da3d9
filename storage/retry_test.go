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

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var fastRetry = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	Multiplier:      2,
	Jitter:          0.5,
}

func TestRetryPolicyDo(t *testing.T) {
	errConflict := status.Error(codes.Aborted, "conflict")
	errFatal := errors.New("fatal")

	for _, test := range []struct {
		desc        string
		policy      RetryPolicy
		failures    []error
		wantCalls   int
		wantRetries int
		wantErr     error
	}{
		{desc: "success", policy: fastRetry, wantCalls: 1},
		{desc: "recovers", policy: fastRetry, failures: []error{errConflict, errConflict}, wantCalls: 3, wantRetries: 2},
		{desc: "exhausted", policy: fastRetry, failures: []error{errConflict, errConflict, errConflict, errConflict, errConflict}, wantCalls: 4, wantRetries: 3, wantErr: errConflict},
		{desc: "permanent", policy: fastRetry, failures: []error{errFatal}, wantCalls: 1, wantErr: errFatal},
		{desc: "not found", policy: fastRetry, failures: []error{ErrAccountNotFound}, wantCalls: 1, wantErr: ErrAccountNotFound},
		{desc: "no retry", policy: NoRetry, failures: []error{errConflict}, wantCalls: 1, wantErr: errConflict},
	} {
		t.Run(test.desc, func(t *testing.T) {
			calls, retries := 0, 0
			err := test.policy.Do(context.Background(), func() error {
				calls++
				if calls <= len(test.failures) {
					return test.failures[calls-1]
				}
				return nil
			}, func(error, time.Duration) { retries++ })
			if !errors.Is(err, test.wantErr) {
				t.Errorf("Do()=%v, want %v", err, test.wantErr)
			}
			if calls != test.wantCalls {
				t.Errorf("op called %d times, want %d", calls, test.wantCalls)
			}
			if retries != test.wantRetries {
				t.Errorf("onRetry called %d times, want %d", retries, test.wantRetries)
			}
		})
	}
}

func TestRetryPolicyDoCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 10, InitialInterval: time.Hour, MaxInterval: time.Hour}
	err := policy.Do(ctx, func() error {
		cancel()
		return status.Error(codes.Unavailable, "down")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do()=%v, want %v", err, context.Canceled)
	}
}
