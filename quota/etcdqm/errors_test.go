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

package etcdqm

import (
	"context"
	"errors"
	"testing"

	"github.com/pixelmill/fastquota/storage"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	refused := status.Error(codes.Unavailable, `connection error: desc = "transport: Error while dialing: dial tcp 127.0.0.1:2379: connect: connection refused"`)
	for _, test := range []struct {
		desc                   string
		err                    error
		wantIncrementTransient bool
		wantEnsureTransient    bool
	}{
		{desc: "no leader", err: rpctypes.ErrNoLeader, wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "too many requests", err: rpctypes.ErrTooManyRequests, wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "dial refused", err: refused, wantIncrementTransient: true, wantEnsureTransient: true},
		{desc: "request timed out", err: rpctypes.ErrTimeout, wantIncrementTransient: false, wantEnsureTransient: true},
		{desc: "transport closing", err: status.Error(codes.Unavailable, "transport is closing"), wantIncrementTransient: false, wantEnsureTransient: true},
		{desc: "canceled", err: context.Canceled, wantIncrementTransient: false, wantEnsureTransient: false},
		{desc: "other", err: errors.New("boom"), wantIncrementTransient: false, wantEnsureTransient: false},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if got := storage.IsTransient(toStatus(test.err, false)); got != test.wantIncrementTransient {
				t.Errorf("IsTransient(toStatus(%v, false))=%v, want %v", test.err, got, test.wantIncrementTransient)
			}
			if got := storage.IsTransient(toStatus(test.err, true)); got != test.wantEnsureTransient {
				t.Errorf("IsTransient(toStatus(%v, true))=%v, want %v", test.err, got, test.wantEnsureTransient)
			}
		})
	}
	if err := toStatus(nil, false); err != nil {
		t.Errorf("toStatus(nil)=%v, want nil", err)
	}
}
