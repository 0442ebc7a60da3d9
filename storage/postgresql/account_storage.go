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
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pixelmill/fastquota/storage"
)

const (
	insertAccountSQL = "INSERT INTO Accounts(AccountId,Credits,Privileged) VALUES($1,$2,$3)"
	selectAccountSQL = "SELECT AccountId,Credits,Privileged FROM Accounts WHERE AccountId=$1"
	selectCreditsSQL = "SELECT Credits FROM Accounts WHERE AccountId=$1"
	addCreditsSQL    = "UPDATE Accounts SET Credits=Credits+$1 WHERE AccountId=$2 RETURNING Credits"
	// The predicate on Credits makes the check and the subtraction one
	// atomic step.
	spendCreditsSQL = "UPDATE Accounts SET Credits=Credits-$1 WHERE AccountId=$2 AND Credits>=$1 RETURNING Credits"
)

type accountStorage struct {
	db *pgxpool.Pool
}

// NewAccountStorage returns a storage.AccountStorage backed by db.
func NewAccountStorage(db *pgxpool.Pool) storage.AccountStorage {
	return &accountStorage{db: db}
}

func (s *accountStorage) CreateAccount(ctx context.Context, acct storage.Account) error {
	if _, err := s.db.Exec(ctx, insertAccountSQL, acct.ID, acct.Credits, acct.Privileged); err != nil {
		if isDuplicateErr(err) {
			return storage.ErrAccountExists
		}
		return postgresqlToGRPC(err)
	}
	return nil
}

func (s *accountStorage) GetAccount(ctx context.Context, id string) (*storage.Account, error) {
	acct := &storage.Account{}
	if err := s.db.QueryRow(ctx, selectAccountSQL, id).Scan(&acct.ID, &acct.Credits, &acct.Privileged); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, postgresqlToGRPC(err)
	}
	return acct, nil
}

func (s *accountStorage) AddCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	if err := s.db.QueryRow(ctx, addCreditsSQL, amount, id).Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrAccountNotFound
		}
		return 0, postgresqlToGRPC(err)
	}
	return credits, nil
}

func (s *accountStorage) SpendCredits(ctx context.Context, id string, amount int64) (int64, error) {
	var credits int64
	err := s.db.QueryRow(ctx, spendCreditsSQL, amount, id).Scan(&credits)
	if err == nil {
		return credits, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, postgresqlToGRPC(err)
	}

	// Nothing was updated: either the account is missing or the balance was
	// short. The balance read here is informational only.
	if err := s.db.QueryRow(ctx, selectCreditsSQL, id).Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrAccountNotFound
		}
		return 0, fmt.Errorf("reading balance after refused spend: %w", postgresqlToGRPC(err))
	}
	return 0, &storage.InsufficientBalanceError{AccountID: id, Balance: credits, Requested: amount}
}
