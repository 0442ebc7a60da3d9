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

// Package postgresql provides a PostgreSQL-based storage layer.
package postgresql

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

var (
	postgreSQLURI        = flag.String("postgresql_uri", "postgresql:///defaultdb?host=localhost&user=test", "Connection URI for PostgreSQL database")
	postgresqlTLSCA      = flag.String("postgresql_tls_ca", "", "Path to the CA certificate file for PostgreSQL TLS connection")
	postgresqlVerifyFull = flag.Bool("postgresql_verify_full", false, "Enable full TLS verification for PostgreSQL (sslmode=verify-full). If false, only sslmode=verify-ca is used.")

	postgresqlMu              sync.Mutex
	postgresqlErr             error
	postgresqlDB              *pgxpool.Pool
	postgresqlStorageInstance *postgresqlProvider
)

func init() {
	if err := storage.RegisterProvider("postgresql", newPostgreSQLStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider postgresql: %v", err)
	}
}

// OpenDB opens a connection pool for dbURL.
func OpenDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		// Don't log uri as it could contain credentials.
		klog.Warningf("Could not open PostgreSQL database, check config: %s", err)
		return nil, err
	}
	return db, nil
}

type postgresqlProvider struct {
	db *pgxpool.Pool
}

// NewProvider returns a storage.Provider using db.
func NewProvider(db *pgxpool.Pool) storage.Provider {
	return &postgresqlProvider{db: db}
}

func newPostgreSQLStorageProvider(_ monitoring.MetricFactory) (storage.Provider, error) {
	postgresqlMu.Lock()
	defer postgresqlMu.Unlock()
	if postgresqlStorageInstance == nil {
		db, err := getPostgreSQLDatabaseLocked()
		if err != nil {
			return nil, err
		}
		postgresqlStorageInstance = &postgresqlProvider{db: db}
	}
	return postgresqlStorageInstance, nil
}

// getPostgreSQLDatabaseLocked returns the shared pool, or creates it.
// Requires postgresqlMu to be locked.
func getPostgreSQLDatabaseLocked() (*pgxpool.Pool, error) {
	if postgresqlDB != nil || postgresqlErr != nil {
		return postgresqlDB, postgresqlErr
	}
	uri, err := withTLS(*postgreSQLURI, *postgresqlTLSCA, *postgresqlVerifyFull)
	if err != nil {
		postgresqlErr = err
		return nil, err
	}
	db, err := OpenDB(context.Background(), uri)
	if err != nil {
		postgresqlErr = err
		return nil, err
	}
	postgresqlDB, postgresqlErr = db, nil
	return db, nil
}

// withTLS adds the sslrootcert and sslmode parameters to uri when a CA file
// is configured.
func withTLS(uri, caFile string, verifyFull bool) (string, error) {
	if caFile == "" {
		return uri, nil
	}
	if _, err := os.Stat(caFile); err != nil {
		return "", fmt.Errorf("postgresql CA file error: %w", err)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid postgresql URI: %w", err)
	}
	q := u.Query()
	q.Set("sslrootcert", caFile)
	if verifyFull {
		q.Set("sslmode", "verify-full")
	} else if q.Get("sslmode") == "" {
		q.Set("sslmode", "verify-ca")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *postgresqlProvider) AccountStorage() storage.AccountStorage {
	return NewAccountStorage(s.db)
}

func (s *postgresqlProvider) UsageStorage() storage.UsageStorage {
	return NewUsageStorage(s.db)
}

func (s *postgresqlProvider) CheckDatabaseAccessible(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *postgresqlProvider) Close() error {
	s.db.Close()
	return nil
}
