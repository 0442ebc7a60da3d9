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
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pixelmill/fastquota/storage"
)

const (
	ensureUsageSQL = `INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES($1,$2,0)
		ON CONFLICT (AccountId,WeekStart) DO NOTHING`
	selectUsageSQL    = "SELECT UseCount FROM FastModeUsage WHERE AccountId=$1 AND WeekStart=$2"
	incrementUsageSQL = `INSERT INTO FastModeUsage(AccountId,WeekStart,UseCount) VALUES($1,$2,1)
		ON CONFLICT (AccountId,WeekStart) DO UPDATE SET UseCount=FastModeUsage.UseCount+1
		RETURNING UseCount`
)

type usageStorage struct {
	db *pgxpool.Pool
}

// NewUsageStorage returns a storage.UsageStorage backed by db.
func NewUsageStorage(db *pgxpool.Pool) storage.UsageStorage {
	return &usageStorage{db: db}
}

func (s *usageStorage) EnsureUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	week := storage.WeekKey(weekStart)
	if _, err := s.db.Exec(ctx, ensureUsageSQL, id, week); err != nil {
		return 0, postgresqlToGRPC(err)
	}
	var count int
	if err := s.db.QueryRow(ctx, selectUsageSQL, id, week).Scan(&count); err != nil {
		return 0, postgresqlToGRPC(err)
	}
	return count, nil
}

func (s *usageStorage) IncrementUsage(ctx context.Context, id string, weekStart time.Time) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, incrementUsageSQL, id, storage.WeekKey(weekStart)).Scan(&count); err != nil {
		return 0, postgresqlToGRPC(err)
	}
	return count, nil
}
