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

// Package testdbpgx creates new PostgreSQL databases for tests.
package testdbpgx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pixelmill/fastquota/storage/testdb"
	"github.com/pixelmill/fastquota/testonly"
	"k8s.io/klog/v2"
)

const (
	// PostgreSQLURIEnv is the name of the ENV variable checked for the test
	// PostgreSQL instance URI to use.
	PostgreSQLURIEnv = "TEST_POSTGRESQL_URI"

	defaultTestPostgreSQLURI = "postgresql:///defaultdb?host=localhost&user=postgres&password=postgres"
)

var schemaPath = testonly.RelativeToPackage("../schema/storage.sql")

// postgresqlURI returns the connection URI for tests, taken from
// PostgreSQLURIEnv if set. If dbName is given, the URI's database is replaced
// with it.
func postgresqlURI(dbName string) string {
	uri := defaultTestPostgreSQLURI
	if e := os.Getenv(PostgreSQLURIEnv); len(e) > 0 {
		uri = e
	}
	if dbName == "" {
		return uri
	}
	if s1 := strings.SplitN(uri, "//", 2); len(s1) == 2 {
		if s2 := strings.SplitN(uri, "?", 2); len(s2) == 2 {
			return s1[0] + "///" + dbName + "?" + s2[1]
		}
	}
	return uri
}

// PostgreSQLAvailable indicates whether the configured PostgreSQL database is
// available.
func PostgreSQLAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := pgxpool.New(ctx, postgresqlURI(""))
	if err != nil {
		klog.Infof("pgxpool.New(): %v", err)
		return false
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		klog.Infof("db.Ping(): %v", err)
		return false
	}
	return true
}

// NewFastquotaDB creates an empty, randomly named database with the fastquota
// schema. The returned clean-up function drops it; the pool must not be used
// afterwards.
func NewFastquotaDB(ctx context.Context) (*pgxpool.Pool, func(context.Context), error) {
	if err := testdb.SetFDLimit(2048); err != nil {
		return nil, nil, err
	}

	admin, err := pgxpool.New(ctx, postgresqlURI(""))
	if err != nil {
		return nil, nil, err
	}
	name := fmt.Sprintf("fq_%v", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %v", name)); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("creating database %v: %v", name, err)
	}
	admin.Close()

	db, err := pgxpool.New(ctx, postgresqlURI(name))
	if err != nil {
		return nil, nil, err
	}
	done := func(ctx context.Context) {
		db.Close()
		admin, err := pgxpool.New(ctx, postgresqlURI(""))
		if err != nil {
			klog.Warningf("Failed to reconnect: %v", err)
			return
		}
		defer admin.Close()
		if _, err := admin.Exec(ctx, fmt.Sprintf("DROP DATABASE %v", name)); err != nil {
			klog.Warningf("Failed to drop test database %q: %v", name, err)
		}
	}

	stmts, err := testdb.ReadSchema(schemaPath)
	if err != nil {
		done(ctx)
		return nil, nil, err
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			done(ctx)
			return nil, nil, fmt.Errorf("error running statement %q: %v", stmt, err)
		}
	}
	return db, done, nil
}

// SkipIfNoPostgreSQL skips tests that require a local PostgreSQL.
func SkipIfNoPostgreSQL(t *testing.T) {
	t.Helper()
	if !PostgreSQLAvailable() {
		t.Skip("Skipping test as PostgreSQL not available")
	}
}
