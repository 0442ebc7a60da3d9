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

// The creditctl binary manages accounts and credits directly in storage.
//
// Usage:
//
//	creditctl [flags] create <account>
//	creditctl [flags] grant <account> <amount>
//	creditctl [flags] balance <account>
//	creditctl [flags] status <account>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pixelmill/fastquota/cmd"
	"github.com/pixelmill/fastquota/cmd/internal/provider"
	"github.com/pixelmill/fastquota/ledger"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	"k8s.io/klog/v2"
)

var (
	storageSystem = flag.String("storage_system", provider.DefaultStorageSystem, fmt.Sprintf("Storage system to use. One of: %v", storage.Providers()))
	credits       = flag.Int64("credits", 0, "Initial credits of an account made by create")
	privileged    = flag.Bool("privileged", false, "Whether an account made by create is privileged")
	rpcDeadline   = flag.Duration("rpc_deadline", 10*time.Second, "Deadline for storage operations")
	configFile    = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

var errUsage = errors.New("usage: creditctl [flags] create|grant|balance|status <account> [amount]")

// options holds what the flags select, so run can be tested without them.
type options struct {
	credits    int64
	privileged bool
}

func run(ctx context.Context, sp storage.Provider, opts options, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errUsage
	}
	verb, id := args[0], args[1]
	l := ledger.New(sp.AccountStorage(), ledger.Options{Retry: storage.DefaultRetryPolicy()})

	switch verb {
	case "create":
		if len(args) != 2 {
			return errUsage
		}
		if opts.credits < 0 {
			return fmt.Errorf("--credits must not be negative, got %d", opts.credits)
		}
		acct := storage.Account{ID: id, Credits: opts.credits, Privileged: opts.privileged}
		if err := sp.AccountStorage().CreateAccount(ctx, acct); err != nil {
			return fmt.Errorf("creating %q: %w", id, err)
		}
		fmt.Fprintf(out, "created %s credits=%d privileged=%t\n", id, acct.Credits, acct.Privileged)
	case "grant":
		if len(args) != 3 {
			return errUsage
		}
		amount, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad amount %q: %v", args[2], err)
		}
		c, err := l.Increment(ctx, id, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s credits=%d\n", id, c)
	case "balance":
		c, err := l.Balance(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s credits=%d\n", id, c)
	case "status":
		acct, err := sp.AccountStorage().GetAccount(ctx, id)
		if err != nil {
			return err
		}
		us, err := quota.NewUsageStorageFromFlags(sp)
		if err != nil {
			return err
		}
		qopts, err := quota.OptionsFromFlags()
		if err != nil {
			return err
		}
		st, err := quota.NewGovernor(us, qopts).GetStatus(ctx, id, acct.Privileged)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s credits=%d privileged=%t used=%d remaining=%d limit=%d week=%s resets=%s\n",
			id, acct.Credits, acct.Privileged, st.UsedThisWeek, st.RemainingFastGenerations, st.WeeklyLimit,
			st.WeekStart.Format("2006-01-02"), st.ResetsAt.Format(time.RFC3339))
	default:
		return errUsage
	}
	return nil
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	sp, err := storage.NewProvider(*storageSystem, nil)
	if err != nil {
		klog.Exitf("Failed to get storage provider: %v", err)
	}
	defer sp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *rpcDeadline)
	defer cancel()
	if err := run(ctx, sp, options{credits: *credits, privileged: *privileged}, flag.Args(), os.Stdout); err != nil {
		klog.Exitf("%v", err)
	}
}
