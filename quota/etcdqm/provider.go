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
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"k8s.io/klog/v2"
)

// QuotaSystemName identifies the etcd quota system.
const QuotaSystemName = "etcd"

var (
	servers     = flag.String("etcd_servers", "", "A comma-separated list of etcd servers holding fast mode usage")
	dialTimeout = flag.Duration("etcd_dial_timeout", 5*time.Second, "Timeout for connecting to etcd")
)

func init() {
	if err := quota.RegisterProvider(QuotaSystemName, newEtcdUsageStorage); err != nil {
		klog.Fatalf("Failed to register quota system %v: %v", QuotaSystemName, err)
	}
}

func newEtcdUsageStorage(storage.Provider) (storage.UsageStorage, error) {
	if *servers == "" {
		return nil, fmt.Errorf("can't use the etcd quota system: --etcd_servers is unset")
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(*servers, ","),
		DialTimeout: *dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd at %v: %v", *servers, err)
	}
	klog.Infof("Using the etcd quota system at %v", *servers)
	return New(client), nil
}
