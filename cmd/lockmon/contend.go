// Copyright 2026 The ulock Authors.
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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"ulock.dev/ulock/pkg/lock"
	"ulock.dev/ulock/pkg/lockstats"
	"ulock.dev/ulock/pkg/log"
	"ulock.dev/ulock/pkg/reclock"
)

var contendSignature = lock.Signature('C', 'T', 'N', 'D')

// contendCmd implements subcommands.Command for the "contend" command.
type contendCmd struct {
	workers  int
	duration time.Duration
	hold     time.Duration
	histo    bool
}

// Name implements subcommands.Command.
func (*contendCmd) Name() string {
	return "contend"
}

// Synopsis implements subcommands.Command.
func (*contendCmd) Synopsis() string {
	return "hammer one instrumented lock and report its statistics"
}

// Usage implements subcommands.Command.
func (*contendCmd) Usage() string {
	return `contend [flags] - run a contention workload against one lock
`
}

// SetFlags implements subcommands.Command.
func (c *contendCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 4, "number of goroutines contending for the lock")
	f.DurationVar(&c.duration, "duration", 2*time.Second, "how long to run the workload")
	f.DurationVar(&c.hold, "hold", 100*time.Microsecond, "how long each worker holds the lock")
	f.BoolVar(&c.histo, "histo", false, "attach acquisition and hold-time histograms")
}

// Execute implements subcommands.Command.
func (c *contendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}
	if c.workers < 1 {
		fmt.Fprintln(os.Stderr, "--workers must be at least 1")
		return subcommands.ExitUsageError
	}

	l := &reclock.RecursiveLock{}
	if err := l.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing lock: %v\n", err)
		return subcommands.ExitFailure
	}
	defer l.Destroy()

	h := lock.NewHeader(contendSignature, lock.RankUnranked, "lockmon.contend", nil)
	defer h.Teardown()
	if c.histo {
		h.ForceAcquisitionHisto(0, 0)
		h.ForceHeldHisto(0, 0)
	}

	ctx, cancel := context.WithTimeout(ctx, c.duration)
	defer cancel()

	hotLogger := log.BasicRateLimitedLogger(time.Second)
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		eg.Go(func() error {
			for ctx.Err() == nil {
				start := time.Now()
				contended := l.Acquire()
				h.SampleAcquisition(true, contended, time.Since(start), lockstats.Caller(0))

				held := time.Now()
				spin(c.hold)
				h.SampleHeld(time.Since(held), lockstats.Caller(0))
				// The stats are only stable while the lock is held, so
				// classify before releasing and log after.
				ratio, isHot, doLog := h.Kitchen()
				l.Release()

				if isHot && doLog {
					hotLogger.Warningf("lock %q is hot: %.0f%% of acquisitions contended", h.LockName(), ratio*100)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	lock.DumpAllLocks(log.Log())
	return subcommands.ExitSuccess
}

// spin busy-waits so the hold time shows up as contention rather than as
// scheduler sleep.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
