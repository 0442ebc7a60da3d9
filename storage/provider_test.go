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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pixelmill/fastquota/monitoring"
)

type provider struct{}

func (p *provider) AccountStorage() AccountStorage                   { return nil }
func (p *provider) UsageStorage() UsageStorage                       { return nil }
func (p *provider) CheckDatabaseAccessible(ctx context.Context) error { return nil }
func (p *provider) Close() error                                     { return nil }

func TestProviderRegistration(t *testing.T) {
	for _, test := range []struct {
		desc    string
		reg     bool
		wantErr bool
	}{
		{desc: "works", reg: true},
		{desc: "unknown provider", wantErr: true},
	} {
		t.Run(test.desc, func(t *testing.T) {
			called := false
			name := test.desc

			if test.reg {
				if err := RegisterProvider(name, func(_ monitoring.MetricFactory) (Provider, error) {
					called = true
					return &provider{}, nil
				}); err != nil {
					t.Fatalf("RegisterProvider(): %v", err)
				}
			}

			_, err := NewProvider(name, nil)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("NewProvider()=%v, want err? %v", err, test.wantErr)
			}
			if !called && !test.wantErr {
				t.Fatal("Registered storage provider was not called")
			}
		})
	}
}

func TestRegisterProviderTwice(t *testing.T) {
	f := func(_ monitoring.MetricFactory) (Provider, error) { return &provider{}, nil }
	if err := RegisterProvider("twice", f); err != nil {
		t.Fatalf("RegisterProvider(): %v", err)
	}
	if err := RegisterProvider("twice", f); err == nil {
		t.Error("second RegisterProvider() succeeded, want error")
	}
}

func TestProviders(t *testing.T) {
	f := func(_ monitoring.MetricFactory) (Provider, error) { return &provider{}, nil }
	for _, name := range []string{"zz", "aa"} {
		if err := RegisterProvider("providers-"+name, f); err != nil {
			t.Fatalf("RegisterProvider(): %v", err)
		}
	}
	var got []string
	for _, name := range Providers() {
		if name == "providers-aa" || name == "providers-zz" {
			got = append(got, name)
		}
	}
	if diff := cmp.Diff([]string{"providers-aa", "providers-zz"}, got); diff != "" {
		t.Errorf("Providers() diff (-want +got):\n%s", diff)
	}
}
