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

// Package etcd starts embedded etcd servers for tests.
package etcd

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
)

const (
	// maxStartAttempts bounds retries when a picked port gets taken before
	// etcd binds it.
	maxStartAttempts = 3
	startTimeout     = 10 * time.Second
)

// StartEtcd starts an embedded single-member etcd cluster in a temporary
// directory on free localhost ports and returns a client connected to it.
// Both are closed when the test ends.
func StartEtcd(t *testing.T) *clientv3.Client {
	t.Helper()
	e, err := start(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to start etcd: %v", err)
	}
	t.Cleanup(e.Close)

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(startTimeout):
		t.Fatal("Timed out waiting for etcd to start")
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{e.Config().ListenClientUrls[0].String()},
		DialTimeout: startTimeout,
	})
	if err != nil {
		t.Fatalf("clientv3.New(): %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func start(dir string) (*embed.Etcd, error) {
	for i := 0; i < maxStartAttempts; i++ {
		e, err := tryStart(dir)
		if err == nil {
			return e, nil
		}
		if !strings.Contains(err.Error(), "address already in use") {
			return nil, err
		}
	}
	return nil, errors.New("too many attempts")
}

func freeURL() (*url.URL, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return url.Parse("http://" + l.Addr().String())
}

func tryStart(dir string) (*embed.Etcd, error) {
	clientURL, err := freeURL()
	if err != nil {
		return nil, err
	}
	peerURL, err := freeURL()
	if err != nil {
		return nil, err
	}

	cfg := embed.NewConfig()
	cfg.Dir = dir
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.AdvertiseClientUrls = []url.URL{*clientURL}
	cfg.ListenPeerUrls = []url.URL{*peerURL}
	cfg.AdvertisePeerUrls = []url.URL{*peerURL}
	cfg.InitialCluster = fmt.Sprintf("%s=%v", cfg.Name, peerURL)
	cfg.Logger = "zap"
	cfg.LogLevel = "error"

	return embed.StartEtcd(cfg)
}
