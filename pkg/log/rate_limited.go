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

package log

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimited drops statements beyond the configured rate instead of
// blocking or queueing. A hot lock reports itself on every release; the
// caller wants one line per interval, not a flood that makes the contention
// worse. The embedded Logger supplies IsLogging unchanged: rate limiting
// applies to emission, not to level checks.
type rateLimited struct {
	Logger
	limit *rate.Limiter
}

func (rl *rateLimited) Debugf(format string, v ...any) {
	if rl.limit.Allow() {
		rl.Logger.Debugf(format, v...)
	}
}

func (rl *rateLimited) Infof(format string, v ...any) {
	if rl.limit.Allow() {
		rl.Logger.Infof(format, v...)
	}
}

func (rl *rateLimited) Warningf(format string, v ...any) {
	if rl.limit.Allow() {
		rl.Logger.Warningf(format, v...)
	}
}

// BasicRateLimitedLogger returns a Logger that passes at most one statement
// per the given interval through to the global logger.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(Log(), every)
}

// RateLimitedLogger returns a Logger that passes at most one statement per
// the given interval through to logger.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimited{
		Logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}
