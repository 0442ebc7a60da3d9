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
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// retryablePrefixes are Redis error replies sent instead of running the
// command, after which the same command is expected to succeed later.
var retryablePrefixes = []string{"LOADING ", "TRYAGAIN ", "CLUSTERDOWN ", "MASTERDOWN ", "READONLY "}

// toStatus converts failures that are safe to repeat into codes.Unavailable
// so that they are retried. Other errors are returned unchanged.
//
// A failure to connect, or a refusal reply, means the command never ran. A
// timeout or dropped connection after the command was written leaves its
// outcome unknown, so it is only retryable when idempotent is set.
func toStatus(err error, idempotent bool) error {
	if err == nil {
		return nil
	}
	if notSent(err) {
		return status.Errorf(codes.Unavailable, "redis: %v", err)
	}
	msg := err.Error()
	for _, p := range retryablePrefixes {
		if strings.HasPrefix(msg, p) {
			return status.Errorf(codes.Unavailable, "redis: %v", err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if idempotent {
			return status.Errorf(codes.Unavailable, "redis: %v", err)
		}
		return fmt.Errorf("redis: outcome unknown: %w", err)
	}
	return err
}

// notSent reports whether err happened while establishing a connection.
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
