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

// Package native provides the non-recursive exclusive lock that the
// recursive lock core is built on.
//
// The interface is deliberately narrow: five operations, each reporting
// success, busy or an unexpected error. Everything non-portable lives behind
// it; the recursive lock algorithm never sees the platform.
package native

import (
	"errors"
)

// ErrBusy is returned by TryLock when the mutex is held by someone else, and
// by Destroy when the mutex is still locked. It is the only expected failure;
// callers treat anything else as an invariant violation.
var ErrBusy = errors.New("mutex is busy")

// ErrNotOwned is returned by Unlock when the mutex is not locked.
var ErrNotOwned = errors.New("mutex is not locked")

// Mutex is a non-recursive exclusive lock.
//
// A Mutex must be initialized with Init before first use and destroyed with
// Destroy after last use. Implementations do not track ownership; calling
// Lock twice from the same goroutine deadlocks, which is exactly why the
// recursive core exists.
type Mutex interface {
	// Init prepares the mutex for use. It reports an error if platform
	// resources cannot be obtained.
	Init() error

	// Destroy releases the mutex's resources. Destroying a locked mutex
	// returns ErrBusy.
	Destroy() error

	// Lock acquires the mutex, blocking until it is available.
	Lock() error

	// TryLock acquires the mutex without blocking. It returns ErrBusy if
	// the mutex is held.
	TryLock() error

	// Unlock releases the mutex. It returns ErrNotOwned if the mutex is
	// not locked.
	Unlock() error
}
