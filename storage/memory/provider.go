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

package memory

import (
	"context"

	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

func init() {
	if err := storage.RegisterProvider("memory", newMemoryStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider memory: %v", err)
	}
}

type memProvider struct {
	s *Store
}

func newMemoryStorageProvider(_ monitoring.MetricFactory) (storage.Provider, error) {
	klog.Warning("Using the memory storage provider: balances and usage are lost on restart")
	return NewProvider(), nil
}

// NewProvider returns a storage.Provider backed by a fresh Store.
func NewProvider() storage.Provider {
	return &memProvider{s: NewStore()}
}

func (m *memProvider) AccountStorage() storage.AccountStorage {
	return m.s
}

func (m *memProvider) UsageStorage() storage.UsageStorage {
	return m.s
}

func (m *memProvider) CheckDatabaseAccessible(context.Context) error {
	return nil
}

func (m *memProvider) Close() error {
	return nil
}
