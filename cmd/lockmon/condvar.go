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
	"ulock.dev/ulock/pkg/log"
	"ulock.dev/ulock/pkg/reclock"
)

var condvarSignature = lock.Signature('C', 'N', 'D', 'V')

// condvarCmd implements subcommands.Command for the "condvar" command. It
// runs a producer/consumer exchange over a condition variable to show the
// wait/signal path working end to end.
type condvarCmd struct {
	consumers int
	items     int
	timeout   time.Duration
}

// Name implements subcommands.Command.
func (*condvarCmd) Name() string {
	return "condvar"
}

// Synopsis implements subcommands.Command.
func (*condvarCmd) Synopsis() string {
	return "run a producer/consumer exchange over a condition variable"
}

// Usage implements subcommands.Command.
func (*condvarCmd) Usage() string {
	return `condvar [flags] - exercise condition variable wait, signal and timeout
`
}

// SetFlags implements subcommands.Command.
func (c *condvarCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.consumers, "consumers", 2, "number of consumer goroutines")
	f.IntVar(&c.items, "items", 100, "number of items to produce")
	f.DurationVar(&c.timeout, "timeout", time.Second, "per-wait timeout for consumers")
}

// Execute implements subcommands.Command.
func (c *condvarCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}

	l := &reclock.RecursiveLock{}
	if err := l.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing lock: %v\n", err)
		return subcommands.ExitFailure
	}
	defer l.Destroy()

	h := lock.NewHeader(condvarSignature, lock.RankUnranked, "lockmon.condvar", nil)
	defer h.Teardown()

	cv, err := lock.CreateCondVar(h, l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating condition variable: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cv.Destroy()

	var (
		queue    []int
		produced bool
		consumed int
		timeouts int
	)

	var eg errgroup.Group
	for i := 0; i < c.consumers; i++ {
		eg.Go(func() error {
			l.Acquire()
			defer l.Release()
			for {
				for len(queue) == 0 && !produced {
					if !cv.Wait(c.timeout) {
						timeouts++
					}
				}
				if len(queue) == 0 && produced {
					return nil
				}
				queue = queue[1:]
				consumed++
			}
		})
	}

	for i := 0; i < c.items; i++ {
		l.Acquire()
		queue = append(queue, i)
		l.Release()
		cv.Signal()
	}
	l.Acquire()
	produced = true
	l.Release()
	cv.Broadcast()

	if err := eg.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	log.Infof("consumed %d/%d items with %d wait timeouts", consumed, c.items, timeouts)
	if consumed != c.items {
		fmt.Fprintf(os.Stderr, "consumed %d items, want %d\n", consumed, c.items)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
