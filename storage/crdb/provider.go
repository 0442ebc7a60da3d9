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

// Package crdb provides a CockroachDB-based storage layer.
package crdb

import (
	"context"
	"database/sql"
	"flag"
	"sync"

	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"

	_ "github.com/lib/pq" // Register the Postgres driver.
)

const (
	// StorageProviderName is the name of the storage provider.
	StorageProviderName = "crdb"
)

var (
	crdbURI  = flag.String("crdb_uri", "postgresql://root@localhost:26257/fastquota?sslmode=disable", "Connection URI for CockroachDB database")
	maxConns = flag.Int("crdb_max_conns", 0, "Maximum connections to the database")
	maxIdle  = flag.Int("crdb_max_idle_conns", -1, "Maximum idle database connections in the connection pool")

	crdbErr             error
	crdbHandle          *sql.DB
	crdbStorageInstance *crdbProvider
	dbConnMu            sync.Mutex
)

func init() {
	if err := storage.RegisterProvider(StorageProviderName, newCRDBStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider crdb: %v", err)
	}
}

// OpenDB opens a database handle for dbURL using the lib/pq driver.
func OpenDB(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		// Don't log uri as it could contain credentials.
		klog.Warningf("Could not open CockroachDB database, check config: %s", err)
		return nil, err
	}
	return db, nil
}

type crdbProvider struct {
	db *sql.DB
	s  *crdbStorage
}

// NewProvider returns a storage.Provider using db.
func NewProvider(db *sql.DB) storage.Provider {
	return &crdbProvider{db: db, s: &crdbStorage{db: db}}
}

func newCRDBStorageProvider(_ monitoring.MetricFactory) (storage.Provider, error) {
	dbConnMu.Lock()
	defer dbConnMu.Unlock()
	if crdbStorageInstance == nil {
		db, err := getCRDBDatabaseLocked()
		if err != nil {
			return nil, err
		}
		crdbStorageInstance = NewProvider(db).(*crdbProvider)
	}
	return crdbStorageInstance, nil
}

// getCRDBDatabaseLocked lazily opens the shared handle. Requires dbConnMu to
// be held.
func getCRDBDatabaseLocked() (*sql.DB, error) {
	if crdbHandle != nil || crdbErr != nil {
		return crdbHandle, crdbErr
	}
	db, err := OpenDB(*crdbURI)
	if err != nil {
		crdbErr = err
		return nil, err
	}
	if *maxConns > 0 {
		db.SetMaxOpenConns(*maxConns)
	}
	if *maxIdle >= 0 {
		db.SetMaxIdleConns(*maxIdle)
	}
	crdbHandle, crdbErr = db, nil
	return db, nil
}

func (p *crdbProvider) AccountStorage() storage.AccountStorage {
	return p.s
}

func (p *crdbProvider) UsageStorage() storage.UsageStorage {
	return p.s
}

func (p *crdbProvider) CheckDatabaseAccessible(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *crdbProvider) Close() error {
	return p.db.Close()
}
