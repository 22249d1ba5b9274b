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

// Package main implements lockmon, a workbench for the lock instrumentation
// machinery. It runs synthetic contention workloads against instrumented
// locks and reports the statistics, histograms and hot-lock classification
// they produce.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"ulock.dev/ulock/pkg/log"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&contendCmd{}, "")
	subcommands.Register(&condvarCmd{}, "")

	format := flag.String("format", "plain", "log format: plain, json or logrus")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := configureLogging(*format, *debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}

func configureLogging(format string, debug bool) error {
	var e log.Emitter
	switch format {
	case "plain":
		e = &log.Writer{Next: os.Stderr}
	case "json":
		e = log.JSONEmitter{Writer: &log.Writer{Next: os.Stderr}}
	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.DebugLevel)
		e = log.LogrusEmitter{Logger: l}
	default:
		return fmt.Errorf("invalid log format %q, must be plain, json or logrus", format)
	}
	level := log.Info
	if debug {
		level = log.Debug
	}
	log.SetTarget(e)
	log.SetLevel(level)
	return nil
}
