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

package quota

import (
	"context"
	"time"

	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

// NoopSystemName is the name of the quota system that keeps no counters.
const NoopSystemName = "noop"

func init() {
	if err := RegisterProvider(NoopSystemName, func(storage.Provider) (storage.UsageStorage, error) {
		klog.Info("Using the noop quota system: fast mode is unlimited for every account")
		return Noop(), nil
	}); err != nil {
		klog.Fatalf("Failed to register quota system %v: %v", NoopSystemName, err)
	}
}

type noop struct{}

// Noop returns a storage.UsageStorage that never stores anything and always
// reports zero uses, which makes fast mode unlimited. For local development.
func Noop() storage.UsageStorage {
	return noop{}
}

func (noop) EnsureUsage(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (noop) IncrementUsage(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
