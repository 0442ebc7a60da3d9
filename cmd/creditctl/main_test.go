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

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pixelmill/fastquota/storage"
	"github.com/pixelmill/fastquota/storage/memory"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	sp := memory.NewProvider()

	for _, test := range []struct {
		desc     string
		opts     options
		args     []string
		want     string
		wantCode codes.Code
		wantErr  error
	}{
		{desc: "create", opts: options{credits: 5}, args: []string{"create", "alice"}, want: "created alice credits=5 privileged=false\n"},
		{desc: "create privileged", opts: options{privileged: true}, args: []string{"create", "vip"}, want: "created vip credits=0 privileged=true\n"},
		{desc: "create twice", args: []string{"create", "alice"}, wantCode: codes.AlreadyExists},
		{desc: "grant", args: []string{"grant", "alice", "3"}, want: "alice credits=8\n"},
		{desc: "grant zero", args: []string{"grant", "alice", "0"}, wantCode: codes.InvalidArgument},
		{desc: "grant unknown", args: []string{"grant", "nobody", "3"}, wantCode: codes.NotFound},
		{desc: "balance", args: []string{"balance", "alice"}, want: "alice credits=8\n"},
		{desc: "status", args: []string{"status", "alice"}, want: "alice credits=8 privileged=false used=0 remaining=3 limit=3 week="},
		{desc: "status privileged", args: []string{"status", "vip"}, want: "vip credits=0 privileged=true used=0 remaining=-1 limit=-1 week="},
		{desc: "no account", args: []string{"balance"}, wantErr: errUsage},
		{desc: "unknown verb", args: []string{"refund", "alice"}, wantErr: errUsage},
		{desc: "grant without amount", args: []string{"grant", "alice"}, wantErr: errUsage},
	} {
		t.Run(test.desc, func(t *testing.T) {
			var out bytes.Buffer
			err := run(ctx, sp, test.opts, test.args, &out)
			switch {
			case test.wantErr != nil:
				if err != test.wantErr {
					t.Errorf("run()=%v, want %v", err, test.wantErr)
				}
			case test.wantCode != codes.OK:
				if got := status.Code(err); got != test.wantCode {
					t.Errorf("run()=%v, want code %v", err, test.wantCode)
				}
			case err != nil:
				t.Errorf("run(): %v", err)
			case !strings.HasPrefix(out.String(), test.want):
				t.Errorf("run() printed %q, want prefix %q", out.String(), test.want)
			}
		})
	}

	acct, err := sp.AccountStorage().GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if want := (storage.Account{ID: "alice", Credits: 8}); *acct != want {
		t.Errorf("GetAccount()=%+v, want %+v", *acct, want)
	}
}
