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
	"errors"
	"strings"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus classifies an etcd client error for storage.IsTransient.
//
// Requests refused before they were proposed (no leader, too many requests,
// no connection) come back as codes.Unavailable. Any other unavailability,
// such as a proposal timing out, may still have been applied, so it is only
// retryable when idempotent is set. Otherwise it is reported as
// codes.Unknown.
func toStatus(err error, idempotent bool) error {
	if err == nil {
		return nil
	}
	if notProposed(err) {
		return status.Errorf(codes.Unavailable, "etcd: %v", err)
	}
	if errCode(err) != codes.Unavailable {
		return err
	}
	if idempotent {
		return status.Errorf(codes.Unavailable, "etcd: %v", err)
	}
	return status.Errorf(codes.Unknown, "etcd: outcome unknown: %v", err)
}

func notProposed(err error) bool {
	if errors.Is(err, rpctypes.ErrNoLeader) || errors.Is(err, rpctypes.ErrTooManyRequests) {
		return true
	}
	return errCode(err) == codes.Unavailable && strings.Contains(err.Error(), "Error while dialing")
}

// errCode returns the gRPC code of err. The client turns known server
// errors into rpctypes.EtcdError, which carries its code separately.
func errCode(err error) codes.Code {
	var ee rpctypes.EtcdError
	if errors.As(err, &ee) {
		return ee.Code()
	}
	return status.Code(err)
}
