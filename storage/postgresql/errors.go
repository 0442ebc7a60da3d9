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

package postgresql

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// postgresqlToGRPC converts PostgreSQL errors that are known to have left no
// committed change behind into gRPC errors that storage.IsTransient accepts.
func postgresqlToGRPC(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return status.Errorf(codes.Aborted, "PostgreSQL: %v", pgErr)
		case pgerrcode.NumericValueOutOfRange:
			return storage.ErrBalanceOverflow
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return status.Errorf(codes.Unavailable, "PostgreSQL: %v", err)
	}
	return err
}

func isDuplicateErr(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
