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

// Package serverutil holds code for running fastquota servers.
package serverutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pixelmill/fastquota/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Main encapsulates the data and logic to start a fastquota HTTP server.
type Main struct {
	// HTTPEndpoint is the address to listen on.
	HTTPEndpoint string

	// TLS certificate and key files. TLS is off if both are empty.
	TLSCertFile, TLSKeyFile string

	// DBClose, if set, is called once the server has stopped.
	DBClose func() error

	// RegisterHandlersFn adds the API routes to the server's mux.
	RegisterHandlersFn func(*http.ServeMux) error

	// IsHealthy will be called whenever "/healthz" is called on the mux.
	// A nil return value from this function will result in a 200-OK
	// response on the /healthz endpoint.
	IsHealthy func(context.Context) error
	// HealthyDeadline is the maximum duration to wait for a successful
	// IsHealthy() call.
	HealthyDeadline time.Duration

	// ShutdownTimeout bounds how long in-flight requests may run on after
	// a stop is requested.
	ShutdownTimeout time.Duration

	// OnListen, if set, is called with the bound address. Mostly useful in
	// tests that listen on port 0.
	OnListen func(net.Addr)
}

func (m *Main) healthz(rw http.ResponseWriter, req *http.Request) {
	if m.IsHealthy != nil {
		ctx, cancel := context.WithTimeout(req.Context(), m.HealthyDeadline)
		defer cancel()
		if err := m.IsHealthy(ctx); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte(err.Error()))
			return
		}
	}
	rw.Write([]byte("ok"))
}

// Run starts the configured server. Blocks until ctx is done or the process
// is signaled to stop.
func (m *Main) Run(ctx context.Context) error {
	if m.HealthyDeadline == 0 {
		m.HealthyDeadline = 5 * time.Second
	}
	if m.ShutdownTimeout == 0 {
		m.ShutdownTimeout = 70 * time.Second
	}
	if m.DBClose != nil {
		defer func() {
			if err := m.DBClose(); err != nil {
				klog.Errorf("Failed to close storage: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	if m.RegisterHandlersFn != nil {
		if err := m.RegisterHandlersFn(mux); err != nil {
			return err
		}
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", m.healthz)

	lis, err := net.Listen("tcp", m.HTTPEndpoint)
	if err != nil {
		return err
	}
	if m.OnListen != nil {
		m.OnListen(lis.Addr())
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		klog.Infof("HTTP server starting on %v", lis.Addr())
		var err error
		// Let ServeTLS handle the error case when only one of the files is set.
		if m.TLSCertFile != "" || m.TLSKeyFile != "" {
			err = srv.ServeTLS(lis, m.TLSCertFile, m.TLSKeyFile)
		} else {
			err = srv.Serve(lis)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		util.AwaitSignal(gctx, cancel)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		klog.Info("Stopping HTTP server")
		sctx, scancel := context.WithTimeout(context.Background(), m.ShutdownTimeout)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	klog.Info("HTTP server stopped")
	klog.Flush()
	return err
}
