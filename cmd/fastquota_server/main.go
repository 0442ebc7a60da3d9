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

// The fastquota_server binary serves the credit ledger, fast mode quota and
// orchestrated operation API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/pixelmill/fastquota/cmd"
	"github.com/pixelmill/fastquota/cmd/internal/provider"
	"github.com/pixelmill/fastquota/cmd/internal/serverutil"
	"github.com/pixelmill/fastquota/ledger"
	"github.com/pixelmill/fastquota/monitoring/prometheus"
	"github.com/pixelmill/fastquota/orchestrator"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/server"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

var (
	httpEndpoint   = flag.String("http_endpoint", "localhost:8091", "Endpoint for HTTP requests (host:port)")
	tlsCertFile    = flag.String("tls_cert_file", "", "Path to the TLS server certificate. If unset, the server will use unsecured connections.")
	tlsKeyFile     = flag.String("tls_key_file", "", "Path to the TLS server key. If unset, the server will use unsecured connections.")
	healthzTimeout = flag.Duration("healthz_timeout", time.Second*5, "Timeout used during healthz checks")

	storageSystem = flag.String("storage_system", provider.DefaultStorageSystem, fmt.Sprintf("Storage system to use. One of: %v", storage.Providers()))

	trustPrivilegedHeader = flag.Bool("trust_privileged_header", false, "Take privilege from the X-Account-Privileged header instead of the account record. Only safe behind a proxy that sets it.")

	processorURL     = flag.String("processor_url", "", "URL of the external processing provider; operations are disabled if empty")
	operationTimeout = flag.Duration("operation_timeout", orchestrator.DefaultTimeout, "Timeout of one external operation")
	standardDelay    = flag.Duration("standard_delay", orchestrator.DefaultStandardDelay, "Latency penalty of standard mode operations; negative disables it")
	cacheEntries     = flag.Int("result_cache_entries", 0, "Number of operation results cached in memory; 0 disables the cache")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	klog.CopyStandardLogTo("WARNING")
	klog.Info("**** fastquota server starting ****")

	mf := prometheus.MetricFactory{Prefix: "fastquota_"}

	sp, err := storage.NewProvider(*storageSystem, mf)
	if err != nil {
		klog.Exitf("Failed to get storage provider: %v", err)
	}

	us, err := quota.NewUsageStorageFromFlags(sp)
	if err != nil {
		klog.Exitf("Failed to create quota system: %v", err)
	}
	qopts, err := quota.OptionsFromFlags()
	if err != nil {
		klog.Exitf("Invalid quota options: %v", err)
	}
	qopts.MetricFactory = mf
	governor := quota.NewGovernor(us, qopts)

	l := ledger.New(sp.AccountStorage(), ledger.Options{
		Retry:         storage.DefaultRetryPolicy(),
		MetricFactory: mf,
	})

	var runner *orchestrator.Runner
	if *processorURL != "" {
		var cache *orchestrator.ResultCache
		if *cacheEntries > 0 {
			if cache, err = orchestrator.NewResultCache(*cacheEntries); err != nil {
				klog.Exitf("Failed to create result cache: %v", err)
			}
		}
		runner = orchestrator.New(l, governor, &orchestrator.HTTPProcessor{URL: *processorURL}, orchestrator.Options{
			Timeout:       *operationTimeout,
			StandardDelay: *standardDelay,
			Cache:         cache,
			MetricFactory: mf,
		})
	} else {
		klog.Warning("--processor_url is unset, /v1/operations is disabled")
	}

	srv := server.New(l, governor, server.Options{
		Identity:      server.HeaderIdentity(sp.AccountStorage(), *trustPrivilegedHeader),
		Runner:        runner,
		MetricFactory: mf,
	})

	m := serverutil.Main{
		HTTPEndpoint: *httpEndpoint,
		TLSCertFile:  *tlsCertFile,
		TLSKeyFile:   *tlsKeyFile,
		DBClose:      sp.Close,
		RegisterHandlersFn: func(mux *http.ServeMux) error {
			srv.Register(mux)
			return nil
		},
		IsHealthy:       sp.CheckDatabaseAccessible,
		HealthyDeadline: *healthzTimeout,
		// Let in-flight operations finish their external call.
		ShutdownTimeout: *operationTimeout + *standardDelay + 10*time.Second,
	}

	if err := m.Run(context.Background()); err != nil {
		klog.Exitf("Server exited with error: %v", err)
	}
}
