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

package redisqm

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

// QuotaSystemName identifies the Redis quota system.
const QuotaSystemName = "redis"

var (
	redisAddr = flag.String("redis_addr", "", "Address of the Redis server holding fast mode usage. A comma-separated list selects Redis Cluster")
	redisDB   = flag.Int("redis_db", 0, "Redis database number; ignored for Redis Cluster")
	prefix    = flag.String("redis_prefix", "", "Prefix for every Redis key written by the redis quota system")
	usageTTL  = flag.Duration("redis_usage_ttl", 0, "Expiry of Redis usage counters; 0 keeps them forever")
)

func init() {
	if err := quota.RegisterProvider(QuotaSystemName, newRedisUsageStorage); err != nil {
		klog.Fatalf("Failed to register quota system %v: %v", QuotaSystemName, err)
	}
}

func newRedisUsageStorage(storage.Provider) (storage.UsageStorage, error) {
	if *redisAddr == "" {
		return nil, fmt.Errorf("can't use the redis quota system: --redis_addr is unset")
	}
	var client RedisClient
	if addrs := strings.Split(*redisAddr, ","); len(addrs) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{Addrs: addrs})
	} else {
		client = redis.NewClient(&redis.Options{Addr: *redisAddr, DB: *redisDB})
	}

	s := New(client, Options{Prefix: *prefix, TTL: *usageTTL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Load(ctx); err != nil {
		// Scripts are sent in full by later calls instead.
		klog.Warningf("Failed to preload Redis scripts: %v", err)
	}
	klog.Infof("Using the redis quota system at %v", *redisAddr)
	return s, nil
}
