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

package mysql

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// ER_DUP_ENTRY: Error returned by driver when inserting a duplicate row.
	errNumDuplicate = 1062
	// ER_DATA_OUT_OF_RANGE: an arithmetic result did not fit its column.
	errNumOutOfRange = 1690
	// ER_LOCK_WAIT_TIMEOUT: the statement gave up waiting for a row lock.
	errNumLockWaitTimeout = 1205
	// ER_LOCK_DEADLOCK: Error returned when there was a deadlock.
	errNumDeadlock = 1213
)

// mysqlToGRPC converts MySQL errors that are known to have left no committed
// change behind into gRPC errors that storage.IsTransient accepts.
func mysqlToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return status.Errorf(codes.Unavailable, "MySQL: %v", err)
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case errNumDeadlock, errNumLockWaitTimeout:
		return status.Errorf(codes.Aborted, "MySQL: %v", mysqlErr)
	case errNumOutOfRange:
		return storage.ErrBalanceOverflow
	}
	return err
}

func isDuplicateErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errNumDuplicate
}
