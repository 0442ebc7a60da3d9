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
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb"
	"github.com/pixelmill/fastquota/storage"
)

const (
	insertAccountSQL = "INSERT INTO Accounts(AccountId,Credits,Privileged) VALUES($1,$2,$3)"
	selectAccountSQL = "SELECT AccountId,Credits,Privileged FROM Accounts WHERE AccountId=$1"
	selectCreditsSQL = "SELECT Credits FROM Accounts WHERE AccountId=$1"
	addCreditsSQL    = "UPDATE Accounts SET Credits=Credits+$1 WHERE AccountId=$2 RETURNING Credits"
	spendCreditsSQL  = "UPDATE Accounts SET Credits=Credits-$1 WHERE AccountId=$2 AND Credits>=$1 RETURNING Credits"

	ensureUsageSQL = `INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES($1,$2,0)
		ON CONFLICT (AccountId,WeekStart) DO NOTHING`
	selectUsageSQL    = "SELECT UseCount FROM FastModeUsage WHERE AccountId=$1 AND WeekStart=$2"
	incrementUsageSQL = `INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES($1,$2,1)
		ON CONFLICT (AccountId,WeekStart) DO UPDATE SET UseCount=FastModeUsage.UseCount+1
		RETURNING UseCount`
)

// crdbStorage implements both storage interfaces. Multi-statement operations
// run through crdb.ExecuteTx, which retries transaction restarts.
type crdbStorage struct {
	db *sql.DB
}

func (s *crdbStorage) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	return crdbToGRPC(crdb.ExecuteTx(ctx, s.db, nil /* txopts */, f))
}

func (s *crdbStorage) CreateAccount(ctx context.Context, acct storage.Account) error {
	if _, err := s.db.ExecContext(ctx, insertAccountSQL, acct.ID, acct.Credits, acct.Privileged); err != nil {
		if isDuplicateErr(err) {
			return storage.ErrAccountExists
		}
		return crdbToGRPC(err)
	}
	return nil
}

func (s *crdbStorage) GetAccount(ctx context.Context, id string) (*storage.Account, error) {
	acct := &storage.Account{}
	if err := s.db.QueryRowContext(ctx, selectAccountSQL, id).Scan(&acct.ID, &acct.Credits, &acct.Privileged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, crdbToGRPC(err)
	}
	return acct, nil
}

func (s *crdbStorage) AddCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	err := s.db.QueryRowContext(ctx, addCreditsSQL, amount, id).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrAccountNotFound
	}
	return credits, crdbToGRPC(err)
}

func (s *crdbStorage) SpendCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, spendCreditsSQL, amount, id).Scan(&credits)
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := tx.QueryRowContext(ctx, selectCreditsSQL, id).Scan(&credits); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrAccountNotFound
			}
			return err
		}
		return &storage.InsufficientBalanceError{AccountID: id, Balance: credits, Requested: amount}
	})
	if err != nil {
		return 0, err
	}
	return credits, nil
}

func weekDate(weekStart time.Time) string {
	return storage.WeekKey(weekStart).Format("2006-01-02")
}

func (s *crdbStorage) EnsureUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	week := weekDate(weekStart)
	var count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ensureUsageSQL, id, week); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, selectUsageSQL, id, week).Scan(&count)
	})
	return count, err
}

func (s *crdbStorage) IncrementUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, incrementUsageSQL, id, weekDate(weekStart)).Scan(&count)
	return count, crdbToGRPC(err)
}
