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

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// AccountIDHeader carries the caller's account, set by the trusted
	// identity proxy in front of the server.
	AccountIDHeader = "X-Account-Id"
	// PrivilegedHeader optionally carries whether the caller is privileged.
	PrivilegedHeader = "X-Account-Privileged"
)

// Identity is the caller of a request.
type Identity struct {
	AccountID  string
	Privileged bool
}

// IdentityFunc resolves the caller of a request.
type IdentityFunc func(*http.Request) (Identity, error)

// HeaderIdentity reads the account from AccountIDHeader. Privilege comes
// from the account record, or from PrivilegedHeader if trustPrivilegedHeader
// is set.
func HeaderIdentity(as storage.AccountStorage, trustPrivilegedHeader bool) IdentityFunc {
	return func(r *http.Request) (Identity, error) {
		id := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if id == "" {
			return Identity{}, status.Errorf(codes.Unauthenticated, "missing %s header", AccountIDHeader)
		}
		if trustPrivilegedHeader {
			var privileged bool
			if v := r.Header.Get(PrivilegedHeader); v != "" {
				var err error
				if privileged, err = strconv.ParseBool(v); err != nil {
					return Identity{}, status.Errorf(codes.InvalidArgument, "bad %s header: %q", PrivilegedHeader, v)
				}
			}
			return Identity{AccountID: id, Privileged: privileged}, nil
		}

		acct, err := as.GetAccount(r.Context(), id)
		if err != nil {
			return Identity{}, err
		}
		return Identity{AccountID: id, Privileged: acct.Privileged}, nil
	}
}
