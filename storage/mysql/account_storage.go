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
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

const (
	insertAccountSQL = "INSERT INTO Accounts(AccountId,Credits,Privileged) VALUES(?,?,?)"
	selectAccountSQL = "SELECT AccountId,Credits,Privileged FROM Accounts WHERE AccountId=?"
	selectCreditsSQL = "SELECT Credits FROM Accounts WHERE AccountId=?"
	addCreditsSQL    = "UPDATE Accounts SET Credits=Credits+? WHERE AccountId=?"
	// The predicate on Credits makes the check and the subtraction one
	// atomic step.
	spendCreditsSQL = "UPDATE Accounts SET Credits=Credits-? WHERE AccountId=? AND Credits>=?"
)

type accountStorage struct {
	db *sql.DB
}

// NewAccountStorage returns a storage.AccountStorage backed by db.
func NewAccountStorage(db *sql.DB) storage.AccountStorage {
	return &accountStorage{db: db}
}

// inTx runs f in a transaction, committing if it returns nil.
func inTx(ctx context.Context, db *sql.DB, f func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil /* opts */)
	if err != nil {
		klog.Warningf("Could not start TX: %s", err)
		return mysqlToGRPC(err)
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			klog.Warningf("Rollback failed: %v", rbErr)
		}
		return err
	}
	return mysqlToGRPC(tx.Commit())
}

func (s *accountStorage) CreateAccount(ctx context.Context, acct storage.Account) error {
	if _, err := s.db.ExecContext(ctx, insertAccountSQL, acct.ID, acct.Credits, acct.Privileged); err != nil {
		if isDuplicateErr(err) {
			return storage.ErrAccountExists
		}
		return mysqlToGRPC(err)
	}
	return nil
}

func (s *accountStorage) GetAccount(ctx context.Context, id string) (*storage.Account, error) {
	acct := &storage.Account{}
	if err := s.db.QueryRowContext(ctx, selectAccountSQL, id).Scan(&acct.ID, &acct.Credits, &acct.Privileged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, mysqlToGRPC(err)
	}
	return acct, nil
}

// readCredits reads the balance, mapping a missing row to
// storage.ErrAccountNotFound.
func readCredits(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}, id string) (int64, error) {
	var credits int64
	if err := q.QueryRowContext(ctx, selectCreditsSQL, id).Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrAccountNotFound
		}
		return 0, mysqlToGRPC(err)
	}
	return credits, nil
}

func (s *accountStorage) AddCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, addCreditsSQL, amount, id)
		if err != nil {
			return mysqlToGRPC(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return storage.ErrAccountNotFound
		}
		credits, err = readCredits(ctx, tx, id)
		return err
	})
	return credits, err
}

func (s *accountStorage) SpendCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, spendCreditsSQL, amount, id, amount)
		if err != nil {
			return mysqlToGRPC(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		credits, err = readCredits(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return &storage.InsufficientBalanceError{AccountID: id, Balance: credits, Requested: amount}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("spending %d credits: %w", amount, err)
	}
	return credits, nil
}
