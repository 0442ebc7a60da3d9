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

// Package provider registers every storage provider and quota system with
// the binaries that import it.
package provider

import (
	"slices"

	"github.com/pixelmill/fastquota/storage"

	// Storage providers.
	_ "github.com/pixelmill/fastquota/storage/crdb"
	_ "github.com/pixelmill/fastquota/storage/memory"
	_ "github.com/pixelmill/fastquota/storage/mysql"
	_ "github.com/pixelmill/fastquota/storage/postgresql"

	// Quota systems beyond the built-in storage and noop ones.
	_ "github.com/pixelmill/fastquota/quota/etcdqm"
	_ "github.com/pixelmill/fastquota/quota/redisqm"
)

// DefaultStorageSystem is the storage provider used when none is chosen.
var DefaultStorageSystem string

func init() {
	defaultProvider := "postgresql"
	providers := storage.Providers()
	if len(providers) > 0 && !slices.Contains(providers, defaultProvider) {
		defaultProvider = providers[0]
	}
	DefaultStorageSystem = defaultProvider
}
