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
	"flag"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

var (
	// System is a flag specifying where usage counters are kept.
	System = flag.String("quota_system", "storage", "Where fast mode usage counters are kept. One of: storage, noop, redis, etcd")

	weekLocation = flag.String("quota_week_location", "UTC", "IANA time zone in which fast mode weeks start on Monday at midnight")
	weeklyLimit  = flag.Int("quota_weekly_limit", WeeklyLimit, "Number of fast mode uses a standard account gets per week")

	qpMu     sync.RWMutex
	qpByName map[string]NewUsageStorageFunc
)

// NewUsageStorageFunc is the signature of a function which can be registered
// to provide usage counter stores. sp is the configured storage provider,
// which stores may use or ignore.
type NewUsageStorageFunc func(sp storage.Provider) (storage.UsageStorage, error)

func init() {
	if err := RegisterProvider("storage", func(sp storage.Provider) (storage.UsageStorage, error) {
		return sp.UsageStorage(), nil
	}); err != nil {
		klog.Fatalf("Failed to register quota system storage: %v", err)
	}
}

// RegisterProvider registers a function that provides usage counter stores.
func RegisterProvider(name string, f NewUsageStorageFunc) error {
	qpMu.Lock()
	defer qpMu.Unlock()

	if qpByName == nil {
		qpByName = make(map[string]NewUsageStorageFunc)
	}
	if _, exists := qpByName[name]; exists {
		return fmt.Errorf("quota provider %v already registered", name)
	}
	qpByName[name] = f
	return nil
}

// Providers returns the sorted names of the registered quota systems.
func Providers() []string {
	qpMu.RLock()
	defer qpMu.RUnlock()

	r := make([]string, 0, len(qpByName))
	for k := range qpByName {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// NewUsageStorage returns the usage counter store registered as name.
func NewUsageStorage(name string, sp storage.Provider) (storage.UsageStorage, error) {
	qpMu.RLock()
	f, exists := qpByName[name]
	qpMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown quota system: %v", name)
	}
	return f(sp)
}

// NewUsageStorageFromFlags returns the store selected by --quota_system.
func NewUsageStorageFromFlags(sp storage.Provider) (storage.UsageStorage, error) {
	return NewUsageStorage(*System, sp)
}

// OptionsFromFlags returns Governor options configured by the quota flags.
// TimeSource and MetricFactory are left for the caller.
func OptionsFromFlags() (Options, error) {
	loc, err := time.LoadLocation(*weekLocation)
	if err != nil {
		return Options{}, fmt.Errorf("--quota_week_location: %v", err)
	}
	if *weeklyLimit <= 0 {
		return Options{}, fmt.Errorf("--quota_weekly_limit must be positive, got %d", *weeklyLimit)
	}
	return Options{
		Limit:    *weeklyLimit,
		Location: loc,
		Retry:    storage.DefaultRetryPolicy(),
	}, nil
}
