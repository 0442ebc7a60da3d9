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

// Package mysql provides a MySQL-based storage layer.
package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"flag"
	"os"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

var (
	mySQLURI        = flag.String("mysql_uri", "test:zaphod@tcp(127.0.0.1:3306)/test", "Connection URI for MySQL database")
	maxConns        = flag.Int("mysql_max_conns", 0, "Maximum connections to the database")
	maxIdle         = flag.Int("mysql_max_idle_conns", -1, "Maximum idle database connections in the connection pool")
	mySQLTLSCA      = flag.String("mysql_tls_ca", "", "Path to the CA certificate file for MySQL TLS connection")
	mySQLServerName = flag.String("mysql_server_name", "", "Name of the MySQL server to be used as the Server Name in the TLS configuration")

	mysqlMu              sync.Mutex
	mysqlErr             error
	mysqlDB              *sql.DB
	mysqlStorageInstance *mysqlProvider
)

const tlsConfigName = "custom"

func init() {
	if err := storage.RegisterProvider("mysql", newMySQLStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider mysql: %v", err)
	}
}

// OpenDB opens a handle for dsn. Every connection runs in strict mode so
// that out-of-range values are rejected instead of truncated.
func OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		// Don't log uri as it could contain credentials.
		klog.Warningf("Could not parse MySQL DSN, check config: %s", err)
		return nil, err
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["sql_mode"] = "'STRICT_ALL_TABLES'"
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		klog.Warningf("Could not open MySQL database, check config: %s", err)
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

type mysqlProvider struct {
	db *sql.DB
}

// NewProvider returns a storage.Provider using db.
func NewProvider(db *sql.DB) storage.Provider {
	return &mysqlProvider{db: db}
}

func newMySQLStorageProvider(_ monitoring.MetricFactory) (storage.Provider, error) {
	mysqlMu.Lock()
	defer mysqlMu.Unlock()
	if mysqlStorageInstance == nil {
		db, err := getMySQLDatabaseLocked()
		if err != nil {
			return nil, err
		}
		mysqlStorageInstance = &mysqlProvider{db: db}
	}
	return mysqlStorageInstance, nil
}

// getMySQLDatabaseLocked returns the shared handle, or creates it. Requires
// mysqlMu to be locked.
func getMySQLDatabaseLocked() (*sql.DB, error) {
	if mysqlDB != nil || mysqlErr != nil {
		return mysqlDB, mysqlErr
	}
	dsn := *mySQLURI
	if *mySQLTLSCA != "" {
		if err := registerMySQLTLSConfig(); err != nil {
			mysqlErr = err
			return nil, err
		}
		dsn += "?tls=" + tlsConfigName
	}
	db, err := OpenDB(dsn)
	if err != nil {
		mysqlErr = err
		return nil, err
	}
	if *maxConns > 0 {
		db.SetMaxOpenConns(*maxConns)
	}
	if *maxIdle >= 0 {
		db.SetMaxIdleConns(*maxIdle)
	}
	mysqlDB, mysqlErr = db, nil
	return db, nil
}

// registerMySQLTLSConfig registers a TLS config trusting the configured CA
// certificate.
func registerMySQLTLSConfig() error {
	rootCertPool := x509.NewCertPool()
	pem, err := os.ReadFile(*mySQLTLSCA)
	if err != nil {
		return err
	}
	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return errors.New("failed to append PEM")
	}
	tlsConfig := &tls.Config{
		RootCAs:    rootCertPool,
		ServerName: *mySQLServerName,
	}
	return mysql.RegisterTLSConfig(tlsConfigName, tlsConfig)
}

func (s *mysqlProvider) AccountStorage() storage.AccountStorage {
	return NewAccountStorage(s.db)
}

func (s *mysqlProvider) UsageStorage() storage.UsageStorage {
	return NewUsageStorage(s.db)
}

func (s *mysqlProvider) CheckDatabaseAccessible(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *mysqlProvider) Close() error {
	return s.db.Close()
}
