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

package crdb

import (
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	uniqueViolationErrorCode      = pq.ErrorCode("23505")
	serializationFailureErrorCode = pq.ErrorCode("40001")
	numericOutOfRangeErrorCode    = pq.ErrorCode("22003")
)

// crdbToGRPC converts CockroachDB errors that are known to have left no
// committed change behind into gRPC errors that storage.IsTransient accepts.
// crdb.ExecuteTx already retries restarts, so a serialization failure here
// means its retries ran out.
func crdbToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return status.Errorf(codes.Unavailable, "CockroachDB: %v", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case serializationFailureErrorCode:
			return status.Errorf(codes.Aborted, "CockroachDB: %v", pqErr)
		case numericOutOfRangeErrorCode:
			return storage.ErrBalanceOverflow
		}
	}
	return err
}

func isDuplicateErr(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationErrorCode
}
