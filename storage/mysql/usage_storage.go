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
	"time"

	"github.com/pixelmill/fastquota/storage"
)

const (
	selectUsageSQL    = "SELECT UseCount FROM FastModeUsage WHERE AccountId=? AND WeekStart=?"
	insertUsageSQL    = "INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES(?,?,0)"
	incrementUsageSQL = `INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES(?,?,1)
		ON DUPLICATE KEY UPDATE UseCount=UseCount+1`
)

type usageStorage struct {
	db *sql.DB
}

// NewUsageStorage returns a storage.UsageStorage backed by db.
func NewUsageStorage(db *sql.DB) storage.UsageStorage {
	return &usageStorage{db: db}
}

// weekDate formats the week key as a DATE literal.
func weekDate(weekStart time.Time) string {
	return storage.WeekKey(weekStart).Format("2006-01-02")
}

func (s *usageStorage) readUsage(ctx context.Context, id string, week string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, selectUsageSQL, id, week).Scan(&count)
	return count, err
}

func (s *usageStorage) EnsureUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	week := weekDate(weekStart)
	count, err := s.readUsage(ctx, id, week)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mysqlToGRPC(err)
	}

	if _, err := s.db.ExecContext(ctx, insertUsageSQL, id, week); err != nil {
		if !isDuplicateErr(err) {
			return 0, mysqlToGRPC(err)
		}
		// Another caller created the row first; fall through and read it.
		count, err := s.readUsage(ctx, id, week)
		return count, mysqlToGRPC(err)
	}
	return 0, nil
}

func (s *usageStorage) IncrementUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	week := weekDate(weekStart)
	var count int
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, incrementUsageSQL, id, week); err != nil {
			return mysqlToGRPC(err)
		}
		return mysqlToGRPC(tx.QueryRowContext(ctx, selectUsageSQL, id, week).Scan(&count))
	})
	return count, err
}
