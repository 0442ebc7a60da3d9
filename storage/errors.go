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

package storage

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrAccountNotFound is returned when the referenced account does not
	// exist.
	ErrAccountNotFound = status.Error(codes.NotFound, "account not found")
	// ErrAccountExists is returned by CreateAccount for a duplicate ID.
	ErrAccountExists = status.Error(codes.AlreadyExists, "account already exists")
	// ErrBalanceOverflow is returned by AddCredits when the new balance would
	// not fit in an int64. The balance is left unchanged.
	ErrBalanceOverflow = status.Error(codes.OutOfRange, "credit balance would overflow")
)

// InsufficientBalanceError is returned when a spend would take a balance
// below zero. No credits were moved.
type InsufficientBalanceError struct {
	AccountID string
	Balance   int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account %q has %d credits, %d requested", e.AccountID, e.Balance, e.Requested)
}

// GRPCStatus lets status.Code and status.FromError classify the error.
func (e *InsufficientBalanceError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// AsInsufficientBalance returns the *InsufficientBalanceError in err's chain,
// if any.
func AsInsufficientBalance(err error) (*InsufficientBalanceError, bool) {
	var ib *InsufficientBalanceError
	if errors.As(err, &ib) {
		return ib, true
	}
	return nil, false
}

// IsTransient reports whether err is a storage failure that is known to have
// left no mutation behind, so the operation may be attempted again.
// Backends signal this with codes.Aborted (conflict, deadlock, lock timeout)
// or codes.Unavailable (the request never reached the database).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.Aborted, codes.Unavailable:
		return true
	}
	return false
}
