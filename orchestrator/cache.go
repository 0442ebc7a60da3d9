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

package orchestrator

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheEntries is the size of a ResultCache created with a
// non-positive size.
const DefaultCacheEntries = 256

// ResultCache remembers recent outputs by input. It is a best-effort
// optimization local to one process and never affects credits or quota
// counts.
type ResultCache struct {
	c *lru.Cache[[sha256.Size]byte, []byte]
}

// NewResultCache returns a cache holding up to size results.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	c, err := lru.New[[sha256.Size]byte, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{c: c}, nil
}

// Get returns the cached output for input, if any.
func (r *ResultCache) Get(input []byte) ([]byte, bool) {
	return r.c.Get(sha256.Sum256(input))
}

// Add caches output as the result for input.
func (r *ResultCache) Add(input, output []byte) {
	r.c.Add(sha256.Sum256(input), output)
}

// Len returns the number of cached results.
func (r *ResultCache) Len() int {
	return r.c.Len()
}
